package event

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Fingerprint returns a hex SHA-256 digest over the fields that count as a
// meaningful change: title, description, start, venue, address and image.
// Categories, city and the source identity are not part of it, so tag drift
// alone never marks a record as updated.
//
// Fields are written in a fixed order, each as its name followed by either
// an absent marker or a length-prefixed value, so a nil field and an empty
// one hash differently and no value can spill into its neighbour.
func Fingerprint(c Candidate) string {
	h := sha256.New()
	buf := make([]byte, 0, 256)

	buf = appendField(buf, "title", &c.Title)
	buf = appendField(buf, "description", c.Description)
	buf = appendField(buf, "start", formatStart(c.Start))
	buf = appendField(buf, "venue", c.Venue)
	buf = appendField(buf, "address", c.Address)
	buf = appendField(buf, "image", c.ImageURL)

	h.Write(buf)
	return hex.EncodeToString(h.Sum(nil))
}

func appendField(buf []byte, name string, v *string) []byte {
	buf = append(buf, name...)
	if v == nil {
		return append(buf, '\x00', '-', '\n')
	}
	buf = append(buf, '\x00', '+')
	buf = strconv.AppendInt(buf, int64(len(*v)), 10)
	buf = append(buf, ':')
	buf = append(buf, *v...)
	return append(buf, '\n')
}

func formatStart(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339Nano)
	return &s
}
