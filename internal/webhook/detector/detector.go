// Package detector derives document lifecycle events from before/after
// snapshots of a document mutation.
package detector

import (
	"signet/internal/webhook/models"
)

// Detect compares the document state before and after a mutation and returns
// the events the transition produced, in emission order.
//
// Rules:
//   - nil previous means the document was just created.
//   - isSend flipping false to true means it was sent out for signing.
//   - allSigned flipping false to true means the last signature landed:
//     signed is emitted, then completed. Zero signers counts as fully
//     signed, so such a document can never produce the flip.
//
// viewed and declined are not transitions a snapshot pair can express; they
// come from explicit triggers.
func Detect(previous *models.DocumentSnapshot, current models.DocumentSnapshot) []models.EventType {
	if previous == nil {
		return []models.EventType{models.EventDocumentCreated}
	}

	var events []models.EventType

	if !previous.IsSend && current.IsSend {
		events = append(events, models.EventDocumentSent)
	}

	if !previous.AllSigned() && current.AllSigned() {
		events = append(events, models.EventDocumentSigned, models.EventDocumentCompleted)
	}

	return events
}
