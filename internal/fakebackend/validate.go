package fakebackend

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const msgRequired = "This field is required."

// fieldErrors is the backend's validation body: {"field": ["message", ...]}.
type fieldErrors map[string][]string

func (e fieldErrors) add(field, msg string) {
	e[field] = append(e[field], msg)
}

func (e fieldErrors) required(field string, missing bool) {
	if missing {
		e.add(field, msgRequired)
	}
}

func (e fieldErrors) any() bool { return len(e) > 0 }

// decimal accepts both 1.5 and "1.5", the way the backend's DecimalField does.
type decimal string

func (d *decimal) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*d = decimal(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*d = decimal(n.String())
	return nil
}

// validHours mirrors DecimalField(max_digits=4, decimal_places=1) and
// returns the normalised string form.
func validHours(raw string) (string, string) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return "", "A valid number is required."
	}
	if v < 0 {
		return "", "Ensure this value is greater than or equal to 0."
	}

	if i := strings.IndexByte(raw, '.'); i >= 0 && len(strings.TrimRight(raw[i+1:], "0")) > 1 {
		return "", "Ensure that there are no more than 1 decimal places."
	}
	if v >= 1000 {
		return "", "Ensure that there are no more than 4 digits in total."
	}
	return strconv.FormatFloat(v, 'f', 1, 64), ""
}

func validDate(raw string) string {
	if _, err := time.Parse(time.DateOnly, raw); err != nil {
		return "Date has wrong format. Use one of these formats instead: YYYY-MM-DD."
	}
	return ""
}

var serviceStatuses = []string{"pending", "in_progress", "completed"}

func validStatus(raw string) string {
	for _, s := range serviceStatuses {
		if raw == s {
			return ""
		}
	}
	return fmt.Sprintf("%q is not a valid choice.", raw)
}
