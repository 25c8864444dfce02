package rag

import (
	"fmt"
	"strings"

	"github.com/GuillaumeRedon/hackathon-IBM-DIA-E22/internal/index"
	"github.com/GuillaumeRedon/hackathon-IBM-DIA-E22/internal/qa"
)

// conversationalTemplate is the instruction filled for the ask flow:
// retrieved documents, conversation history, then the question to answer.
// The directive tells the model to answer only the latest question, to lean
// on document content even under loose phrasing, and to say explicitly when
// no document helps.
const conversationalTemplate = `Tu es un assistant virtuel pour une école. Tu dois répondre à la dernière question de l'utilisateur en t'appuyant sur:
1. Les documents de la base de connaissances ci-dessous
2. L'historique de la conversation pour comprendre le contexte

RÈGLES IMPORTANTES:
- Utilise les informations des documents pour répondre, même si la formulation de la question n'est pas exactement la même que dans les documents
- Si les documents contiennent des informations pertinentes qui peuvent aider à répondre, utilise-les pour construire ta réponse
- Sois clair et pédagogique dans tes explications
- Si vraiment AUCUNE information dans les documents ne peut aider à répondre (par exemple une question sur la météo), dis alors : "Je n'ai pas d'information sur ce sujet dans ma base de connaissances."
- Ne réponds QU'À la dernière question posée
- Utilise l'historique pour comprendre le contexte de la conversation

=== DOCUMENTS DE LA BASE DE CONNAISSANCES ===
%s

=== HISTORIQUE DE LA CONVERSATION ===
%s

=== DERNIÈRE QUESTION À RÉPONDRE ===
%s

Réponse de l'assistant:`

// simpleTemplate is the terser instruction used by the offline one-shot
// flow: no history block, same grounding rules.
const simpleTemplate = `Tu es un assistant virtuel pour une école. Je vais te donner les questions qui ressemblent le plus à celle de l'utilisateur et leurs réponses.
Si tu ne trouves pas la réponse dans le contexte, dis-le clairement.
Soit clair avec l'utilisateur sur ce que tu trouves
Voici les questions et réponses de l'école:

%s

Réponds uniquement à la question suivante posée par l'utilisateur en utilisant les réponses de l'école:
%s

Réponse:`

// formatDocuments renders retrieved documents into the context block: each
// document carries a 1-based ordinal and its id, blank-line separated. An
// empty retrieval renders an empty block; the instruction template handles
// that case, not the code.
func formatDocuments(results []index.Result) string {
	parts := make([]string, 0, len(results))
	for i, res := range results {
		id := res.Document.Metadata["id"]
		if id == "" {
			id = "N/A"
		}
		parts = append(parts, fmt.Sprintf("Document %d (ID: %s):\n%s", i+1, id, res.Document.Text))
	}
	return strings.Join(parts, "\n\n")
}

// formatHistory renders conversation turns one per line, in original order,
// labelled by author.
func formatHistory(turns []qa.Turn) string {
	lines := make([]string, 0, len(turns))
	for _, turn := range turns {
		label := "Assistant"
		if turn.Role == qa.RoleUser {
			label = "Utilisateur"
		}
		lines = append(lines, label+": "+turn.Content)
	}
	return strings.Join(lines, "\n")
}
