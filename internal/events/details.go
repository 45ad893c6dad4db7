package events

import "strings"

// ExtractDetails gathers error and warning indicators from the payloads of
// members, in member order. Payloads that are not objects are skipped.
func ExtractDetails(members []Event) Details {
	var d Details
	for _, e := range members {
		m, ok := asMap(e.Payload)
		if !ok {
			continue
		}
		d.ErrorMessages = append(d.ErrorMessages, stringList(m, "error_messages", "errorMessages")...)
		d.WarningMessages = append(d.WarningMessages, stringList(m, "warning_messages", "warningMessages")...)

		for _, item := range objectList(m, "failed_items", "failedItems") {
			d.FailedItems = append(d.FailedItems, FailedItem{
				Name:        itemString(item, "name"),
				DisplayName: firstString(item, "displayName", "display_name"),
				Error:       itemString(item, "error"),
			})
		}
		for _, item := range objectList(m, "warning_items", "warningItems") {
			d.WarningItems = append(d.WarningItems, WarningItem{
				Name:        itemString(item, "name"),
				DisplayName: firstString(item, "displayName", "display_name"),
				Warning:     itemString(item, "warning"),
			})
		}
	}
	d.HasExpandableDetails = len(d.ErrorMessages) > 0 || len(d.WarningMessages) > 0 ||
		len(d.FailedItems) > 0 || len(d.WarningItems) > 0
	return d
}

func stringList(m map[string]any, keys ...string) []string {
	var out []string
	for _, k := range keys {
		for _, v := range listField(m, k) {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func objectList(m map[string]any, keys ...string) []map[string]any {
	var out []map[string]any
	for _, k := range keys {
		for _, v := range listField(m, k) {
			if obj, ok := asMap(v); ok {
				out = append(out, obj)
			}
		}
	}
	return out
}

// itemString reads a field that may also be sent as a number.
func itemString(m map[string]any, key string) string {
	return firstScalar(m, key)
}
