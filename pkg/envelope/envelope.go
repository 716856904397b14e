package envelope

import (
	"encoding/json"
	"time"

	"rapport/pkg/apperr"

	"github.com/gofiber/fiber/v2"
)

// TraceLocal is the fiber Locals key the requestid middleware stores the trace id under.
const TraceLocal = "requestid"

type Envelope struct {
	Code      apperr.Code `json:"code"`
	Message   string      `json:"message"`
	Data      any         `json:"data"`
	TraceID   string      `json:"traceId"`
	Timestamp int64       `json:"ts"`
}

func Success(traceID string, data any) Envelope {
	return Envelope{
		Code:      apperr.CodeOK,
		Message:   "ok",
		Data:      data,
		TraceID:   traceID,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Failure builds an error envelope. It takes no payload: a non-zero code always
// serialises with "data": null.
func Failure(traceID string, code apperr.Code, message string) Envelope {
	return Envelope{
		Code:      code,
		Message:   message,
		TraceID:   traceID,
		Timestamp: time.Now().UnixMilli(),
	}
}

func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

func Unmarshal(data []byte) (Envelope, error) {
	var e Envelope
	err := json.Unmarshal(data, &e)
	return e, err
}

// ParseData decodes the payload of an envelope read back from the wire.
func ParseData[T any](e Envelope) (T, error) {
	var v T
	raw, err := json.Marshal(e.Data)
	if err != nil {
		return v, err
	}
	err = json.Unmarshal(raw, &v)
	return v, err
}

func TraceID(c *fiber.Ctx) string {
	id, _ := c.Locals(TraceLocal).(string)
	return id
}

func OK(c *fiber.Ctx, data any) error {
	return c.Status(fiber.StatusOK).JSON(Success(TraceID(c), data))
}

func Created(c *fiber.Ctx, data any) error {
	return c.Status(fiber.StatusCreated).JSON(Success(TraceID(c), data))
}

func Fail(c *fiber.Ctx, status int, code apperr.Code, message string) error {
	return c.Status(status).JSON(Failure(TraceID(c), code, message))
}
