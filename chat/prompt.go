package chat

import (
	"strings"

	"github.com/fabfab/psy-assistant/llm"
)

const systemPrompt = `Tu es un **Psychiatre spécialisé en troubles de l’humeur**.
Ton rôle :
1. **Recueillir** : Âge, sexe, antécédents médicaux/familiaux.
2. **Évaluer** : Symptômes (critères DSM-5/ICD-10), durée, impact sur la vie quotidienne.
3. **Diagnostiquer** : Dépression légère/moderée/sévère, trouble bipolaire, etc.
4. **Orienter** : Vers un psychiatre en présentiel si risque suicidaire ou cas complexe.`

const userPromptTemplate = `### **Contexte Scientifique** :
{context}

### **Historique Conversationnel** :
{chat_history}

### **Patient** : {question}

### **Réponse Structurée** (en Markdown) :
1. **Évaluation** :
   - Symptômes clés : [liste]
   - Échelle PHQ-9/GAD-7 (si applicable) : [score estimé]
2. **Hypothèse Diagnostique** :
   - [Diagnostic préliminaire + critères]
3. **Recommandations** :
   - Consultation en présentiel : [Oui/Non]
   - Ressources : [Lignes d’écoute, centres spécialisés]
4. **Disclaimer** : *"Ceci n’est pas un avis médical définitif. Consultez un professionnel."*
`

func formatUserPrompt(question string, chunks []ChunkResult, history []llm.Message) string {
	contextParts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		contextParts = append(contextParts, strings.TrimSpace(chunk.Content))
	}

	replacer := strings.NewReplacer(
		"{context}", strings.Join(contextParts, "\n\n"),
		"{chat_history}", formatHistory(history),
		"{question}", question,
	)
	return replacer.Replace(userPromptTemplate)
}

func formatHistory(history []llm.Message) string {
	var sb strings.Builder
	for _, msg := range history {
		switch msg.Role {
		case llm.RoleUser:
			sb.WriteString("Patient : ")
		case llm.RoleAssistant:
			sb.WriteString("Psychiatre : ")
		default:
			continue
		}
		sb.WriteString(msg.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}
