package hit

import (
	"fmt"

	"github.com/serroba/online-board/internal/board"
	"github.com/serroba/online-board/internal/geometry"
	"github.com/serroba/online-board/internal/ws"
)

// Field names the payload field a recolor mutates.
type Field string

// Recolorable fields.
const (
	FieldFillColor Field = "fillColor"
	FieldColor     Field = "color"
)

// Reasons reported when a recolor click does nothing.
const (
	ReasonNoHit = "no object at click position"
)

// RecolorAction is the outcome of a recolor click. When ShouldPerformAction
// is false, Reason explains why and the remaining fields are unset apart from Hit.
type RecolorAction struct {
	ShouldPerformAction bool
	Reason              string

	Hit   Result
	Field Field

	// Type is always an object update; the update targets InstanceID, not a position.
	Type       ws.MessageType
	InstanceID string
	Sender     string
	Payload    board.ActionPayload
}

// ProcessRecolorClick finds the object under point and builds the update that
// recolors the part that was clicked.
func ProcessRecolorClick(
	point geometry.Point, objects []board.ActionPayload, canvas geometry.Canvas, newColor, senderID string,
) RecolorAction {
	result := DetectObjectHit(point, objects, canvas)
	if !result.Hit {
		return RecolorAction{Reason: ReasonNoHit, Hit: result}
	}

	updated := result.Object.Clone()

	var field Field

	switch result.Type {
	case TypeFill:
		if !updated.Tool.SupportsFill() {
			return RecolorAction{
				Reason: fmt.Sprintf("%s has no fill to recolor", updated.Tool),
				Hit:    result,
			}
		}

		updated.FillColor = newColor
		field = FieldFillColor
	case TypeStroke, TypeObject:
		updated.Color = newColor
		field = FieldColor
	default:
		return RecolorAction{Reason: fmt.Sprintf("unsupported hit type %q", result.Type), Hit: result}
	}

	return RecolorAction{
		ShouldPerformAction: true,
		Hit:                 result,
		Field:               field,
		Type:                ws.MessageTypeObjectUpdate,
		InstanceID:          updated.InstanceID,
		Sender:              senderID,
		Payload:             updated,
	}
}
