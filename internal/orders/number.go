package orders

import (
	"crypto/rand"
	"fmt"
	"io"
	"strconv"
	"time"
)

const (
	orderNumberPrefix  = "ORD"
	orderNumberSuffix  = 5
	orderNumberCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// NumberGenerator produces human-referenceable order numbers of the form
// ORD-<unix millis>-<5 uppercase alphanumerics>.
type NumberGenerator struct {
	now    func() time.Time
	random io.Reader
}

func NewNumberGenerator() *NumberGenerator {
	return &NumberGenerator{now: time.Now, random: rand.Reader}
}

func (g *NumberGenerator) Next() (string, error) {
	suffix, err := g.suffix()
	if err != nil {
		return "", fmt.Errorf("generate order number: %w", err)
	}
	millis := strconv.FormatInt(g.now().UnixMilli(), 10)
	return orderNumberPrefix + "-" + millis + "-" + suffix, nil
}

func (g *NumberGenerator) suffix() (string, error) {
	// bytes at or above limit would bias the low characters
	limit := byte(256 - 256%len(orderNumberCharset))
	out := make([]byte, 0, orderNumberSuffix)
	buf := make([]byte, orderNumberSuffix*2)
	for len(out) < orderNumberSuffix {
		if _, err := io.ReadFull(g.random, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, orderNumberCharset[int(b)%len(orderNumberCharset)])
			if len(out) == orderNumberSuffix {
				break
			}
		}
	}
	return string(out), nil
}
