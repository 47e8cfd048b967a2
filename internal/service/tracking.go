package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"
)

const (
	trackingPrefix    = "ZAP"
	trackingSuffixLen = 6
)

// 36^6 distinct suffixes.
var trackingSpace = big.NewInt(2176782336)

// TrackingIDGenerator returns a tracking id for a parcel paid at now.
type TrackingIDGenerator func(now time.Time) (string, error)

// NewTrackingID returns ZAP-<YYYYMMDD>-<6 base-36 chars> using the UTC date of now.
func NewTrackingID(now time.Time) (string, error) {
	n, err := rand.Int(rand.Reader, trackingSpace)
	if err != nil {
		return "", fmt.Errorf("failed to generate tracking suffix: %w", err)
	}

	suffix := strings.ToUpper(strconv.FormatInt(n.Int64(), 36))
	if pad := trackingSuffixLen - len(suffix); pad > 0 {
		suffix = strings.Repeat("0", pad) + suffix
	}

	return fmt.Sprintf("%s-%s-%s", trackingPrefix, now.UTC().Format("20060102"), suffix), nil
}
