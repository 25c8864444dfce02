package qa

import (
	"fmt"

	"github.com/GuillaumeRedon/hackathon-IBM-DIA-E22/internal/index"
)

// documentTemplate is the rendering of a record into embeddable text. The
// header carries the school and topic signal into the embedding; the layout
// must stay byte-stable so re-embedding a record reproduces the text already
// persisted in existing collections.
const documentTemplate = `[Écoles: %s] [Thématique: %s]

Question: %s

Réponse: %s`

// Document renders the record into its indexable form: the deterministic
// text blob plus a metadata copy of the structured fields. It is a pure
// transformation; absent optional fields render as empty or sentinel values.
func (r Record) Document() index.Document {
	schools := joinOrNA(r.Schools)

	return index.Document{
		ID:   r.ID,
		Text: fmt.Sprintf(documentTemplate, schools, r.Topic, r.Title, r.Content),
		Metadata: map[string]string{
			"id":           r.ID,
			"title":        r.Title,
			"date":         r.Date,
			"post_type":    r.PostType,
			"langues":      r.Language,
			"thematiques":  r.Topic,
			"utilisateurs": joinOrNA(r.Audiences),
			"ecoles":       schools,
			"status":       r.Status,
		},
	}
}
