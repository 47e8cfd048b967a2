package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	nethttp "net/http"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sakib404-hub/zap-shit-server/internal/domain"
	"github.com/sakib404-hub/zap-shit-server/internal/identity"
	"github.com/sakib404-hub/zap-shit-server/internal/repository/memory"
	"github.com/sakib404-hub/zap-shit-server/internal/service"
	"github.com/sakib404-hub/zap-shit-server/internal/transport/http/handler"
	"github.com/sakib404-hub/zap-shit-server/pkg/config"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

const (
	testSecret = "router-test-secret"
	testIssuer = "zap-shift"

	aliceEmail = "alice@example.com"
	bobEmail   = "bob@example.com"
	adminEmail = "admin@example.com"
	riderEmail = "rider@example.com"
)

var trackingPattern = regexp.MustCompile(`^ZAP-\d{8}-[0-9A-Z]{6}$`)

type stubProvider struct {
	mu       sync.Mutex
	sessions map[string]domain.SessionOutcome
	err      error
}

func (p *stubProvider) CreateSession(_ context.Context, params domain.CheckoutParams) (*domain.CheckoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return nil, p.err
	}

	return &domain.CheckoutSession{ID: "cs_new", URL: "https://checkout.example.com/pay/" + params.ParcelID}, nil
}

func (p *stubProvider) RetrieveSession(_ context.Context, id string) (*domain.SessionOutcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return nil, p.err
	}

	outcome, ok := p.sessions[id]
	if !ok {
		return nil, errors.New("no such checkout session")
	}

	return &outcome, nil
}

type stubWebhooks struct{}

func (stubWebhooks) CompletedSessionID(payload []byte, signature string) (string, bool, error) {
	if signature != "valid" {
		return "", false, service.ErrValidation
	}

	return string(payload), string(payload) != "", nil
}

type RouterSuite struct {
	suite.Suite
	store    *memory.Store
	provider *stubProvider
	app      *fiber.App
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	logger := zap.NewNop()
	ctx := context.Background()

	s.store = memory.NewStore()
	s.provider = &stubProvider{sessions: make(map[string]domain.SessionOutcome)}

	for _, u := range []struct {
		email string
		role  domain.Role
	}{
		{aliceEmail, domain.RoleUser},
		{bobEmail, domain.RoleUser},
		{adminEmail, domain.RoleAdmin},
		{riderEmail, domain.RoleRider},
	} {
		_, _, err := s.store.Users().Upsert(ctx, &domain.User{Email: u.email, Role: domain.RoleUser})
		s.Require().NoError(err)

		_, err = s.store.Users().UpdateRole(ctx, u.email, u.role)
		s.Require().NoError(err)
	}

	verifier, err := identity.NewJWTVerifier(testSecret, testIssuer)
	s.Require().NoError(err)

	users := service.NewUserService(s.store.Users(), logger)
	guard := service.NewRoleGuard(users)

	handlers := &Handlers{
		User:   handler.NewUserHandler(users, guard, logger),
		Parcel: handler.NewParcelHandler(service.NewParcelService(s.store, logger, service.DefaultEventTopic), logger),
		Payment: handler.NewPaymentHandler(
			service.NewCheckoutService(s.store.Parcels(), s.provider, service.CheckoutConfig{SiteDomain: "http://localhost:5173"}, logger),
			service.NewReconcileService(s.store, s.provider, logger),
			service.NewPaymentService(s.store.Payments()),
			stubWebhooks{},
			logger,
		),
		Rider: handler.NewRiderHandler(service.NewRiderService(s.store.Riders(), users, logger), logger),
	}

	s.app = NewApp(config.HTTP{Timeout: 5 * time.Second}, config.Limiter{})
	RegisterRoutes(s.app, handlers, Auth{Verifier: verifier, Guard: guard}, logger)
}

func (s *RouterSuite) token(email string) string {
	token, err := identity.IssueToken(testSecret, testIssuer, email, time.Hour)
	s.Require().NoError(err)

	return token
}

func (s *RouterSuite) do(method, path, as string, body any) (int, map[string]any) {
	status, raw := s.doRaw(method, path, as, body)

	var out map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		s.Require().NoError(json.Unmarshal(raw, &out))
	}

	return status, out
}

func (s *RouterSuite) doRaw(method, path, as string, body any) (int, []byte) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(payload)
	}

	req, err := nethttp.NewRequest(method, path, reader)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if as != "" {
		req.Header.Set("Authorization", "Bearer "+s.token(as))
	}

	resp, err := s.app.Test(req, -1)
	s.Require().NoError(err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)

	return resp.StatusCode, raw
}

func (s *RouterSuite) createParcel(as string) string {
	status, body := s.do(nethttp.MethodPost, "/parcels", as, map[string]any{
		"parcelName":      "Box",
		"cost":            2500,
		"senderEmail":     as,
		"receiverName":    "Carol",
		"receiverAddress": "Dhaka",
	})
	s.Require().Equal(fiber.StatusCreated, status, body)

	return body["_id"].(string)
}

func (s *RouterSuite) paidSession(id, parcelID string) {
	s.provider.sessions[id] = domain.SessionOutcome{
		ID:              id,
		PaymentStatus:   "paid",
		PaymentIntentID: "pi_" + id,
		AmountTotal:     250000,
		Currency:        "usd",
		CustomerEmail:   aliceEmail,
		Metadata: map[string]string{
			domain.MetadataParcelID:   parcelID,
			domain.MetadataParcelName: "Box",
		},
	}
}

func (s *RouterSuite) TestRootAndHealth() {
	status, raw := s.doRaw(nethttp.MethodGet, "/", "", nil)
	s.Equal(fiber.StatusOK, status)
	s.Equal("Zap is Shifting shifting!", string(raw))

	status, body := s.do(nethttp.MethodGet, "/health", "", nil)
	s.Equal(fiber.StatusOK, status)
	s.Equal("ok", body["status"])
}

func (s *RouterSuite) TestAuthRequired() {
	status, _ := s.do(nethttp.MethodGet, "/parcels", "", nil)
	s.Equal(fiber.StatusUnauthorized, status)

	req, err := nethttp.NewRequest(nethttp.MethodGet, "/parcels", nil)
	s.Require().NoError(err)
	req.Header.Set("Authorization", "Bearer not-a-token")

	resp, err := s.app.Test(req, -1)
	s.Require().NoError(err)
	s.Equal(fiber.StatusUnauthorized, resp.StatusCode)
}

func (s *RouterSuite) TestAdminRoutesAreGuarded() {
	status, _ := s.do(nethttp.MethodGet, "/users", aliceEmail, nil)
	s.Equal(fiber.StatusForbidden, status)

	status, _ = s.do(nethttp.MethodGet, "/users?search=ali", adminEmail, nil)
	s.Equal(fiber.StatusOK, status)

	status, _ = s.do(nethttp.MethodPatch, "/users/"+bobEmail+"/role", aliceEmail, map[string]string{"role": "admin"})
	s.Equal(fiber.StatusForbidden, status)

	status, body := s.do(nethttp.MethodPatch, "/users/"+bobEmail+"/role", adminEmail, map[string]string{"role": "rider"})
	s.Require().Equal(fiber.StatusOK, status)
	s.Equal("rider", body["role"])
}

func (s *RouterSuite) TestGetRole() {
	status, body := s.do(nethttp.MethodGet, "/users/"+adminEmail+"/role", adminEmail, nil)
	s.Require().Equal(fiber.StatusOK, status)
	s.Equal("admin", body["role"])

	status, _ = s.do(nethttp.MethodGet, "/users/"+adminEmail+"/role", aliceEmail, nil)
	s.Equal(fiber.StatusForbidden, status)
}

func (s *RouterSuite) TestRegisterUser() {
	status, body := s.do(nethttp.MethodPost, "/users", "new@example.com", map[string]string{"email": "new@example.com", "displayName": "New"})
	s.Require().Equal(fiber.StatusCreated, status)
	s.Equal("user", body["user"].(map[string]any)["role"])

	status, body = s.do(nethttp.MethodPost, "/users", adminEmail, map[string]string{})
	s.Require().Equal(fiber.StatusOK, status)
	s.Equal("user already exists", body["message"])
	s.Equal("admin", body["user"].(map[string]any)["role"])
}

func (s *RouterSuite) TestRegisterUser_RequiresMatchingToken() {
	status, _ := s.do(nethttp.MethodPost, "/users", "", map[string]string{"email": "anon@example.com"})
	s.Equal(fiber.StatusUnauthorized, status)

	status, _ = s.do(nethttp.MethodPost, "/users", aliceEmail, map[string]string{"email": "victim@example.com"})
	s.Equal(fiber.StatusForbidden, status)

	_, err := s.store.Users().GetByEmail(context.Background(), "victim@example.com")
	s.Error(err)
	_, err = s.store.Users().GetByEmail(context.Background(), "anon@example.com")
	s.Error(err)
}

func (s *RouterSuite) TestCreateParcel_Validation() {
	status, body := s.do(nethttp.MethodPost, "/parcels", aliceEmail, map[string]any{"parcelName": "Box"})
	s.Require().Equal(fiber.StatusBadRequest, status)

	fields := body["fields"].(map[string]any)
	s.Contains(fields, "cost")
	s.Contains(fields, "receiverName")
}

func (s *RouterSuite) TestCheckoutAndReconcile() {
	parcelID := s.createParcel(aliceEmail)

	status, body := s.do(nethttp.MethodPost, "/payment-checkout-session", aliceEmail, map[string]any{
		"cost":        2500,
		"parcelName":  "Box",
		"parcelId":    parcelID,
		"senderEmail": aliceEmail,
	})
	s.Require().Equal(fiber.StatusOK, status, body)
	s.Equal("https://checkout.example.com/pay/"+parcelID, body["url"])

	s.paidSession("cs_1", parcelID)

	status, body = s.do(nethttp.MethodPatch, "/payment-success?session_id=cs_1", "", nil)
	s.Require().Equal(fiber.StatusOK, status, body)
	s.Equal(true, body["success"])
	s.Equal("pi_cs_1", body["transactionId"])
	s.Regexp(trackingPattern, body["trackingId"])
	s.NotContains(body, "message")

	parcel := body["modifyParcel"].(map[string]any)
	s.Equal("paid", parcel["paymentStatus"])
	s.Equal("pending-pickup", parcel["deliveryStatus"])
	s.Equal(body["trackingId"], parcel["trackingId"])

	payment := body["paymentInfo"].(map[string]any)
	s.Equal(2500.0, payment["amount"])
	s.Equal("paid", payment["paymentStatus"])

	trackingID := body["trackingId"].(string)

	status, again := s.do(nethttp.MethodPatch, "/payment-success?session_id=cs_1", "", nil)
	s.Require().Equal(fiber.StatusOK, status)
	s.Equal(true, again["success"])
	s.Equal("Payment Already Exist!", again["message"])
	s.Equal(trackingID, again["trackingId"])
	s.NotContains(again, "paymentInfo")

	count, err := s.store.Payments().Count(context.Background(), "pi_cs_1")
	s.Require().NoError(err)
	s.Equal(int64(1), count)

	status, tracked := s.do(nethttp.MethodGet, "/trackings/"+trackingID, "", nil)
	s.Require().Equal(fiber.StatusOK, status)
	s.Equal("pending-pickup", tracked["deliveryStatus"])

	status, _ = s.do(nethttp.MethodDelete, "/parcels/"+parcelID, aliceEmail, nil)
	s.Equal(fiber.StatusConflict, status)
}

func (s *RouterSuite) TestCheckout_ForAnotherSenderIsForbidden() {
	parcelID := s.createParcel(aliceEmail)

	status, _ := s.do(nethttp.MethodPost, "/payment-checkout-session", bobEmail, map[string]any{
		"cost":        2500,
		"parcelName":  "Box",
		"parcelId":    parcelID,
		"senderEmail": aliceEmail,
	})
	s.Equal(fiber.StatusForbidden, status)
}

func (s *RouterSuite) TestReconcile_Unpaid() {
	parcelID := s.createParcel(aliceEmail)
	s.provider.sessions["cs_open"] = domain.SessionOutcome{
		ID:            "cs_open",
		PaymentStatus: "unpaid",
		Metadata:      map[string]string{domain.MetadataParcelID: parcelID},
	}

	status, body := s.do(nethttp.MethodPatch, "/payment-success?session_id=cs_open", "", nil)
	s.Require().Equal(fiber.StatusOK, status)
	s.Equal(map[string]any{"success": false}, body)

	status, parcel := s.do(nethttp.MethodGet, "/parcels/"+parcelID, aliceEmail, nil)
	s.Require().Equal(fiber.StatusOK, status)
	s.Equal("unpaid", parcel["paymentStatus"])
	s.Nil(parcel["trackingId"])
}

func (s *RouterSuite) TestReconcile_Errors() {
	status, _ := s.do(nethttp.MethodPatch, "/payment-success", "", nil)
	s.Equal(fiber.StatusBadRequest, status)

	status, _ = s.do(nethttp.MethodPatch, "/payment-success?session_id=cs_unknown", "", nil)
	s.Equal(fiber.StatusBadGateway, status)
}

func (s *RouterSuite) TestWebhook() {
	parcelID := s.createParcel(aliceEmail)
	s.paidSession("cs_hook", parcelID)

	req, err := nethttp.NewRequest(nethttp.MethodPost, "/webhooks/stripe", bytes.NewReader([]byte("cs_hook")))
	s.Require().NoError(err)
	req.Header.Set("Stripe-Signature", "forged")

	resp, err := s.app.Test(req, -1)
	s.Require().NoError(err)
	s.Equal(fiber.StatusBadRequest, resp.StatusCode)

	for range 2 {
		req, err = nethttp.NewRequest(nethttp.MethodPost, "/webhooks/stripe", bytes.NewReader([]byte("cs_hook")))
		s.Require().NoError(err)
		req.Header.Set("Stripe-Signature", "valid")

		resp, err = s.app.Test(req, -1)
		s.Require().NoError(err)
		s.Equal(fiber.StatusOK, resp.StatusCode)
	}

	count, err := s.store.Payments().Count(context.Background(), "pi_cs_hook")
	s.Require().NoError(err)
	s.Equal(int64(1), count)
}

func (s *RouterSuite) TestDeliveryWorkflow() {
	ctx := context.Background()
	parcelID := s.createParcel(aliceEmail)
	s.paidSession("cs_2", parcelID)

	status, _ := s.do(nethttp.MethodPatch, "/payment-success?session_id=cs_2", "", nil)
	s.Require().Equal(fiber.StatusOK, status)

	status, rider := s.do(nethttp.MethodPost, "/riders", riderEmail, map[string]any{
		"name":     "Rahim",
		"phone":    "01700000000",
		"region":   "Dhaka",
		"district": "Dhaka",
	})
	s.Require().Equal(fiber.StatusCreated, status, rider)
	s.Equal("pending", rider["status"])

	status, _ = s.do(nethttp.MethodPatch, "/parcels/"+parcelID+"/assign", adminEmail, map[string]string{"riderEmail": riderEmail})
	s.Equal(fiber.StatusConflict, status)

	status, approved := s.do(nethttp.MethodPatch, "/riders/"+rider["_id"].(string)+"/status", adminEmail, map[string]string{"status": "active"})
	s.Require().Equal(fiber.StatusOK, status, approved)
	s.Equal("active", approved["status"])

	status, assigned := s.do(nethttp.MethodPatch, "/parcels/"+parcelID+"/assign", adminEmail, map[string]string{"riderEmail": riderEmail})
	s.Require().Equal(fiber.StatusOK, status, assigned)
	s.Equal("rider-assigned", assigned["deliveryStatus"])

	status, _ = s.do(nethttp.MethodPatch, "/parcels/"+parcelID+"/status", riderEmail, map[string]string{"deliveryStatus": "delivered"})
	s.Equal(fiber.StatusBadRequest, status)

	status, moved := s.do(nethttp.MethodPatch, "/parcels/"+parcelID+"/status", riderEmail, map[string]string{"deliveryStatus": "in-transit"})
	s.Require().Equal(fiber.StatusOK, status, moved)
	s.Equal("in-transit", moved["deliveryStatus"])

	status, _ = s.do(nethttp.MethodPatch, "/parcels/"+parcelID+"/status", aliceEmail, map[string]string{"deliveryStatus": "delivered"})
	s.Equal(fiber.StatusForbidden, status)

	status, raw := s.doRaw(nethttp.MethodGet, "/riders/parcels", riderEmail, nil)
	s.Require().Equal(fiber.StatusOK, status)

	var parcels []domain.Parcel
	s.Require().NoError(json.Unmarshal(raw, &parcels))
	s.Require().Len(parcels, 1)
	s.Equal(parcelID, parcels[0].ID)

	events := s.store.OutboxEvents()
	s.Len(events, 3)

	user, err := s.store.Users().GetByEmail(ctx, riderEmail)
	s.Require().NoError(err)
	s.Equal(domain.RoleRider, user.Role)
}

func (s *RouterSuite) TestPaymentHistoryIsScoped() {
	status, _ := s.do(nethttp.MethodGet, "/payments?email="+bobEmail, aliceEmail, nil)
	s.Equal(fiber.StatusForbidden, status)

	status, raw := s.doRaw(nethttp.MethodGet, "/payments", aliceEmail, nil)
	s.Require().Equal(fiber.StatusOK, status)
	s.JSONEq("[]", string(raw))
}

func (s *RouterSuite) TestPathParamsOutliveTheRequest() {
	ctx := context.Background()

	status, _ := s.do(nethttp.MethodPatch, "/users/"+bobEmail+"/role", adminEmail, map[string]string{"role": "admin"})
	s.Require().Equal(fiber.StatusOK, status)

	for range 3 {
		status, _ = s.do(nethttp.MethodGet, "/users/"+aliceEmail+"/role", aliceEmail, nil)
		s.Require().Equal(fiber.StatusOK, status)
	}

	user, err := s.store.Users().GetByEmail(ctx, bobEmail)
	s.Require().NoError(err)
	s.Equal(domain.RoleAdmin, user.Role)

	status, body := s.do(nethttp.MethodGet, "/users/"+bobEmail+"/role", bobEmail, nil)
	s.Require().Equal(fiber.StatusOK, status)
	s.Equal("admin", body["role"])
}

func (s *RouterSuite) TestParcelNameRejectsLineBreaks() {
	status, body := s.do(nethttp.MethodPost, "/parcels", aliceEmail, map[string]any{
		"parcelName":      "Box\r\nBcc: victim@evil.test",
		"cost":            10,
		"receiverName":    "Carol",
		"receiverAddress": "Dhaka",
	})
	s.Require().Equal(fiber.StatusBadRequest, status)
	s.Contains(body["fields"].(map[string]any), "parcelName")
}
