package llm

import (
	"strconv"
	"strings"

	"github.com/joseph-ayodele/photo-panels/constants"
)

const maxPromptText = 6000

// BuildSystemPrompt is the fixed instruction template. It does not depend on the page.
func BuildSystemPrompt() string {
	parts := []string{
		"Eres un experto en análisis de documentos de ingeniería civil.",
		"Lee el texto de una página de un informe de mantenimiento vial y devuelve SOLO un objeto JSON que cumpla el JSON Schema proporcionado.",
		"Claves obligatorias y únicas: actividad, progresivas, ubicacion, etapa, descripcion. No agregues otras claves. Todos los valores son cadenas de texto.",
		"actividad: la actividad ejecutada en formato CODIGO-Nombre, eligiendo del catálogo cuando corresponda: " +
			strings.Join(constants.Activities(), ", ") + ". Si no se identifica ninguna, responde " + constants.NoActivity + ".",
		"progresivas: el tramo en metros tal como aparece (por ejemplo \"0+100 - 0+250\" o \"1+500\").",
		"ubicacion: el lugar, sector o tramo mencionado.",
		"etapa: la etapa del trabajo que documenta la página (por ejemplo antes, durante, después o ejecución).",
		"descripcion: un resumen breve y objetivo del trabajo; puede ser una cadena vacía si no hay información.",
		"Nunca uses null. Si un dato no aparece, escribe \"No especificado\" excepto en descripcion.",
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt packages the page text.
func BuildUserPrompt(req AnalyzeRequest) string {
	text := strings.TrimSpace(req.Text)

	var b strings.Builder
	b.WriteString("Página: ")
	b.WriteString(strconv.Itoa(req.PageIndex))
	b.WriteString("\n\nTexto de la página:\n")
	if len(text) > maxPromptText {
		b.WriteString(truncateUTF8(text, maxPromptText))
		b.WriteString("\n…(truncado)")
	} else {
		b.WriteString(text)
	}
	return b.String()
}

func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
