package dispatch

import (
	"context"
	"encoding"
	"reflect"
	"strings"

	"github.com/anjihan3601K/suraksha/alert"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// TriggerAdapter receives alert creation events from a document source.
type TriggerAdapter interface {
	OnAlertCreated(ctx context.Context, id string, payload map[string]interface{}) error
}

// Trigger turns alert creation events into dispatch cycles.
type Trigger struct {
	d *Dispatcher
}

func NewTrigger(d *Dispatcher) *Trigger {
	return &Trigger{d: d}
}

// OnAlertCreated dispatches the alert carried by payload.
// Empty and malformed payloads are logged and skipped without resolving recipients.
func (t *Trigger) OnAlertCreated(ctx context.Context, id string, payload map[string]interface{}) error {
	if len(payload) == 0 {
		t.d.diag.EmptyPayload(id)
		return nil
	}
	a, err := DecodeAlert(payload)
	if err != nil {
		t.d.diag.MalformedPayload(id, err)
		return nil
	}
	_, err = t.d.Dispatch(ctx, a)
	return err
}

type document struct {
	Title    string         `mapstructure:"title"`
	Message  string         `mapstructure:"message"`
	Severity alert.Severity `mapstructure:"severity"`
}

// DecodeAlert decodes a raw alert document.
// Unknown keys are ignored and a missing severity means Info.
func DecodeAlert(payload map[string]interface{}) (alert.Alert, error) {
	var doc document
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:     &doc,
		DecodeHook: decodeStringToTextUnmarshaler,
	})
	if err != nil {
		return alert.Alert{}, errors.Wrap(err, "failed to initialize mapstructure decoder")
	}
	if err := dec.Decode(payload); err != nil {
		return alert.Alert{}, errors.Wrap(err, "failed to decode alert")
	}
	a := alert.Alert{
		Title:    doc.Title,
		Message:  doc.Message,
		Severity: doc.Severity,
	}
	if err := a.Validate(); err != nil {
		return alert.Alert{}, err
	}
	return a, nil
}

var textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()

// decodeStringToTextUnmarshaler decodes a string value into any type
// that implements encoding.TextUnmarshaler. Blank strings leave the zero value.
func decodeStringToTextUnmarshaler(f, t reflect.Type, data interface{}) (interface{}, error) {
	if f.Kind() != reflect.String {
		return data, nil
	}
	isPtr := true
	if t.Kind() != reflect.Ptr {
		isPtr = false
		t = reflect.PtrTo(t)
	}
	if !t.Implements(textUnmarshalerType) {
		return data, nil
	}
	value := reflect.New(t.Elem())
	str := strings.TrimSpace(reflect.ValueOf(data).String())
	if str != "" {
		tum := value.Interface().(encoding.TextUnmarshaler)
		if err := tum.UnmarshalText([]byte(str)); err != nil {
			return nil, err
		}
	}
	if isPtr {
		return value.Interface(), nil
	}
	return reflect.Indirect(value).Interface(), nil
}
