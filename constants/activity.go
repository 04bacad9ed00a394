package constants

import (
	"regexp"
	"strings"
)

// NoActivity is what the model answers when the page names no known activity.
const NoActivity = "NO_ACTIVIDAD"

var activityNames = map[string]string{
	"MR101": "Limpieza de Calzada",
	"MR102": "Bacheo",
	"MR103": "Desquinche",
	"MR104": "Remoción de Derrumbes",
	"MR201": "Limpieza de Cunetas",
	"MR202": "Limpieza de Alcantarillas",
	"MR203": "Limpieza de Badén",
	"MR204": "Limpieza de Zanjas de Coronación",
	"MR205": "Limpieza de Pontones",
	"MR206": "Encauzamiento Pequeños cursos Agua",
	"MR301": "Roce y limpieza",
	"MR401": "Conservación de Señales",
	"MR501": "Reforestación",
	"MR601": "Vigilancia y Control",
	"MR701": "Reparación de muros secos",
	"MR702": "Reparación de Pontones",
}

var activityCodes = []string{
	"MR101", "MR102", "MR103", "MR104",
	"MR201", "MR202", "MR203", "MR204", "MR205", "MR206",
	"MR301", "MR401", "MR501", "MR601", "MR701", "MR702",
}

var reActivityCode = regexp.MustCompile(`^MR\d{3}`)

// Activities returns the catalogue as "CODE-Name" strings in code order.
func Activities() []string {
	out := make([]string, 0, len(activityCodes))
	for _, c := range activityCodes {
		out = append(out, c+"-"+activityNames[c])
	}
	return out
}

// LookupActivity resolves free text such as "MR203", "mr203 - limpieza de badén" or
// "MR203-Limpieza de Badén" to its catalogue entry.
func LookupActivity(input string) (code, full string, ok bool) {
	s := strings.ToUpper(strings.TrimSpace(input))
	if s == "" || s == NoActivity {
		return "", "", false
	}
	m := reActivityCode.FindString(s)
	if m == "" {
		return "", "", false
	}
	name, found := activityNames[m]
	if !found {
		return "", "", false
	}
	return m, m + "-" + name, true
}
