package summarizer

import (
	"strings"
	"testing"
)

func TestBuildPrompt_EmbedsTranscriptOnce(t *testing.T) {
	prompt := BuildPrompt("hola mundo {transcript}")

	if !strings.Contains(prompt, "TRANSCRIPCIÓN PARA ANALIZAR:\nhola mundo {transcript}\n---") {
		t.Fatalf("transcript not embedded verbatim: %q", prompt)
	}
	if strings.Count(prompt, "hola mundo") != 1 {
		t.Fatal("expected transcript to be embedded exactly once")
	}
}

func TestBuildPrompt_RequiresFixedSections(t *testing.T) {
	prompt := BuildPrompt("texto")

	for _, section := range []string{
		"# Minuta de la Reunión",
		"## 1. Resumen Ejecutivo",
		"## 2. Puntos Clave Discutidos",
		"## 3. Decisiones Tomadas",
		"## 4. Tareas y Acciones a Realizar (Action Items)",
		"'Tarea', 'Responsable(s)' y 'Fecha Límite'",
		"'No especificado'",
	} {
		if !strings.Contains(prompt, section) {
			t.Fatalf("prompt is missing %q", section)
		}
	}
}
