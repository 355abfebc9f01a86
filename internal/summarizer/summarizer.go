package summarizer

import (
	"context"
	"errors"
	"strings"
)

var ErrSummarizationFailed = errors.New("summarization failed")

type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (string, error)
}

const transcriptPlaceholder = "{transcript}"

// minutesPromptTemplate asks for the fixed minutes layout. The returned
// markdown is passed through without validation.
const minutesPromptTemplate = `
Actúa como un asistente ejecutivo altamente competente, encargado de documentar una reunión de trabajo.
Analiza la siguiente transcripción y genera una minuta profesional y concisa en español, utilizando el formato Markdown.

La minuta debe contener obligatoriamente las siguientes secciones:

# Minuta de la Reunión

## 1. Resumen Ejecutivo
Un párrafo conciso que resuma el propósito y los resultados clave de la reunión.

## 2. Puntos Clave Discutidos
Una lista de viñetas con los temas más importantes que se trataron.

## 3. Decisiones Tomadas
Una lista numerada que enumere claramente cada decisión final que se acordó.

## 4. Tareas y Acciones a Realizar (Action Items)
Una tabla con tres columnas: 'Tarea', 'Responsable(s)' y 'Fecha Límite'. Infiere los responsables a partir del texto. Si no se menciona un responsable o fecha, indica 'No especificado'.

---
TRANSCRIPCIÓN PARA ANALIZAR:
{transcript}
---
`

func BuildPrompt(transcript string) string {
	return strings.Replace(minutesPromptTemplate, transcriptPlaceholder, transcript, 1)
}
