package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"roomies/internal/core"
)

const maxJSONBody = 1 << 20

var errInvalidPayload = errors.New("request body must be a JSON object")

// Accepted spellings of the payer and participant keys, in priority order.
var (
	payerKeys       = []string{"payer_id", "payerId"}
	participantKeys = []string{"participant_ids", "participants"}
)

// normalizeTransactionPayload maps a JSON transaction body onto the
// canonical builder input. amount may be a string or a number; the payer
// and participants may use either key spelling, and a scalar participant
// value is treated as a one-element list.
func normalizeTransactionPayload(body io.Reader) (core.TransactionInput, error) {
	dec := json.NewDecoder(body)
	dec.UseNumber()

	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return core.TransactionInput{}, fmt.Errorf("%w: %v", errInvalidPayload, err)
	}
	if payload == nil {
		return core.TransactionInput{}, errInvalidPayload
	}

	in := core.TransactionInput{
		Description: sanitizeInput(stringValue(payload["description"])),
		Date:        strings.TrimSpace(stringValue(payload["date"])),
		Amount:      strings.TrimSpace(stringValue(payload["amount"])),
		Comment:     sanitizeInput(stringValue(payload["comment"])),
		Source:      core.SourceJSON,
	}

	for _, key := range payerKeys {
		if v := strings.TrimSpace(stringValue(payload[key])); v != "" {
			in.Payer = v
			in.PayerField = key
			break
		}
	}

	for _, key := range participantKeys {
		refs := listValue(payload[key])
		if len(refs) > 0 {
			in.Participants = refs
			in.ParticipantsField = key
			break
		}
	}
	return in, nil
}

// formTransactionInput maps the HTML form onto the canonical builder input.
func formTransactionInput(form url.Values) core.TransactionInput {
	return core.TransactionInput{
		Description:       sanitizeInput(form.Get("description")),
		Date:              strings.TrimSpace(form.Get("date")),
		Amount:            strings.TrimSpace(form.Get("amount")),
		Payer:             strings.TrimSpace(form.Get("payer_id")),
		Participants:      form["participants"],
		Comment:           sanitizeInput(form.Get("comment")),
		Source:            core.SourceForm,
		PayerField:        "payer_id",
		ParticipantsField: "participants",
	}
}

// parseListQuery reads the sort and member filter of a transaction listing.
// An unparsable member_id disables the filter.
func parseListQuery(query url.Values) core.TransactionQuery {
	q := core.TransactionQuery{Sort: core.ParseSortKey(query.Get("sort"))}
	if v := strings.TrimSpace(query.Get("member_id")); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
			q.MemberID = id
		}
	}
	return q
}

// pathID parses the {id} wildcard of the matched route.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// stringValue renders a decoded JSON scalar as text. Objects and arrays
// yield "".
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

func listValue(v any) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			out = append(out, refValue(item))
		}
		return out
	default:
		if s := strings.TrimSpace(stringValue(val)); s != "" {
			return []string{s}
		}
		return nil
	}
}

// refValue keeps non-scalar list items as unresolvable text so they are
// reported as invalid participants rather than skipped.
func refValue(v any) string {
	switch v.(type) {
	case nil:
		return ""
	case map[string]any, []any:
		return fmt.Sprint(v)
	default:
		return strings.TrimSpace(stringValue(v))
	}
}

func isAPIRequest(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/")
}
