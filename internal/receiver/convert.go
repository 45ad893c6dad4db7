package receiver

import (
	"encoding/base64"
	"encoding/json"
	"strconv"
	"time"

	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"

	"github.com/google/uuid"

	"github.com/nixlim/fleetwatch/internal/events"
)

// Attribute keys read from OTLP log records and their resources.
const (
	attrDeviceID = "device.id"
	attrHostID   = "host.id"
	attrHostName = "host.name"
	attrEventID  = "event.id"
	attrKind     = "event.kind"
	attrPayload  = "event.payload"
)

// convertLogs flattens an OTLP logs export into fleet events.
func convertLogs(resourceLogs []*logspb.ResourceLogs) []events.Event {
	var out []events.Event
	for _, rl := range resourceLogs {
		var resAttrs []*commonpb.KeyValue
		if rl.GetResource() != nil {
			resAttrs = rl.GetResource().GetAttributes()
		}
		device := firstAttr(resAttrs, attrDeviceID, attrHostID, attrHostName)

		for _, sl := range rl.GetScopeLogs() {
			for _, lr := range sl.GetLogRecords() {
				out = append(out, convertRecord(device, lr))
			}
		}
	}
	return out
}

func convertRecord(device string, lr *logspb.LogRecord) events.Event {
	attrs := lr.GetAttributes()

	// A record can name its own device when one agent reports for many.
	if d := firstAttr(attrs, attrDeviceID); d != "" {
		device = d
	}

	e := events.Event{
		ID:     events.ID(firstAttr(attrs, attrEventID)),
		Device: device,
		Kind:   recordKind(lr),
	}
	if e.ID == "" {
		e.ID = events.ID(uuid.NewString())
	}

	if ts := recordTime(lr); !ts.IsZero() {
		e.TS = events.FormatTimestamp(ts)
	}

	body := anyValue(lr.GetBody())
	if s, ok := body.(string); ok {
		e.Message = s
	}

	if raw, ok := findAttr(attrs, attrPayload); ok {
		e.Payload = payloadValue(raw)
	} else if m, ok := body.(map[string]any); ok {
		e.Payload = m
	}
	return e
}

// recordKind prefers an explicit event.kind attribute, then the record's
// event name, then its severity.
func recordKind(lr *logspb.LogRecord) events.Kind {
	if k := events.Kind(firstAttr(lr.GetAttributes(), attrKind)); k != "" {
		return k
	}
	if k := events.Kind(lr.GetEventName()); k.Known() {
		return k
	}
	switch sev := lr.GetSeverityNumber(); {
	case sev >= logspb.SeverityNumber_SEVERITY_NUMBER_ERROR:
		return events.KindError
	case sev >= logspb.SeverityNumber_SEVERITY_NUMBER_WARN:
		return events.KindWarning
	default:
		return events.KindInfo
	}
}

func recordTime(lr *logspb.LogRecord) time.Time {
	if ns := lr.GetTimeUnixNano(); ns > 0 {
		return time.Unix(0, int64(ns)).UTC()
	}
	if ns := lr.GetObservedTimeUnixNano(); ns > 0 {
		return time.Unix(0, int64(ns)).UTC()
	}
	return time.Time{}
}

// payloadValue decodes event.payload. Strings holding JSON are parsed;
// anything else is kept as sent.
func payloadValue(v *commonpb.AnyValue) any {
	val := anyValue(v)
	s, ok := val.(string)
	if !ok {
		return val
	}
	var decoded any
	if err := json.Unmarshal([]byte(s), &decoded); err != nil {
		return s
	}
	return decoded
}

func findAttr(attrs []*commonpb.KeyValue, key string) (*commonpb.AnyValue, bool) {
	for _, kv := range attrs {
		if kv.GetKey() == key {
			return kv.GetValue(), true
		}
	}
	return nil, false
}

// firstAttr returns the first non-empty string form among the given keys.
func firstAttr(attrs []*commonpb.KeyValue, keys ...string) string {
	for _, key := range keys {
		v, ok := findAttr(attrs, key)
		if !ok {
			continue
		}
		if s := scalarString(v); s != "" {
			return s
		}
	}
	return ""
}

func scalarString(v *commonpb.AnyValue) string {
	switch val := anyValue(v).(type) {
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// anyValue converts an OTLP AnyValue into the JSON-like Go values payloads
// carry elsewhere.
func anyValue(v *commonpb.AnyValue) any {
	if v == nil {
		return nil
	}
	switch val := v.GetValue().(type) {
	case *commonpb.AnyValue_StringValue:
		return val.StringValue
	case *commonpb.AnyValue_BoolValue:
		return val.BoolValue
	case *commonpb.AnyValue_IntValue:
		return val.IntValue
	case *commonpb.AnyValue_DoubleValue:
		return val.DoubleValue
	case *commonpb.AnyValue_BytesValue:
		return base64.StdEncoding.EncodeToString(val.BytesValue)
	case *commonpb.AnyValue_ArrayValue:
		list := make([]any, 0, len(val.ArrayValue.GetValues()))
		for _, item := range val.ArrayValue.GetValues() {
			list = append(list, anyValue(item))
		}
		return list
	case *commonpb.AnyValue_KvlistValue:
		m := make(map[string]any, len(val.KvlistValue.GetValues()))
		for _, kv := range val.KvlistValue.GetValues() {
			m[kv.GetKey()] = anyValue(kv.GetValue())
		}
		return m
	default:
		return nil
	}
}
