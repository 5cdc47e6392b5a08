package catalog

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"yobot/internal/model"
)

// ErrMissingID is returned when a rendering has no parsable ID line
var ErrMissingID = errors.New("rendering has no listing id")

const notAvailable = "N/A"

// field labels of the display form, in rendering order
const (
	labelID           = "ID"
	labelLocation     = "Ubicación"
	labelNeighborhood = "Barrio"
	labelArea         = "Area"
	labelPrice        = "Precio"
	labelFee          = "Alícuota"
	labelBedrooms     = "Habitaciones"
	labelBathrooms    = "Baños"
	labelParking      = "Parqueaderos"
	labelDescription  = "Descripción"
	labelURL          = "Enlace"
)

var renderLabels = []string{
	labelID, labelLocation, labelNeighborhood, labelArea, labelPrice, labelFee,
	labelBedrooms, labelBathrooms, labelParking, labelDescription, labelURL,
}

var digitsRe = regexp.MustCompile(`\d+`)

// Render formats a listing as the multi-line text shown to the language model
func Render(l model.Listing) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:%d\n", labelID, l.ID)
	fmt.Fprintf(&b, "%s: %s\n", labelLocation, l.Location)
	fmt.Fprintf(&b, "%s: %s\n", labelNeighborhood, l.Neighborhood)
	fmt.Fprintf(&b, "%s: %s\n", labelArea, l.Area)
	fmt.Fprintf(&b, "%s: %s\n", labelPrice, l.Price)
	fmt.Fprintf(&b, "%s: %s\n", labelFee, l.Fee)
	fmt.Fprintf(&b, "%s: %s\n", labelBedrooms, optionalInt(l.Bedrooms))
	fmt.Fprintf(&b, "%s: %s\n", labelBathrooms, optionalInt(l.Bathrooms))
	fmt.Fprintf(&b, "%s: %s\n", labelParking, optionalInt(l.ParkingSpots))
	fmt.Fprintf(&b, "%s: %s\n", labelDescription, l.Description)
	fmt.Fprintf(&b, "%s: %s", labelURL, l.URL)
	return b.String()
}

// ParseRendering recovers a listing from its display form.
// The id is read only from the first non-empty line and the first occurrence
// of every other label wins. Everything between the description label and the
// last link line belongs to the description, so free text that happens to look
// like a label cannot overwrite a field. Leading indentation is ignored.
func ParseRendering(s string) (model.Listing, error) {
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}

	first := 0
	for first < len(lines) && lines[first] == "" {
		first++
	}
	if first == len(lines) {
		return model.Listing{}, ErrMissingID
	}
	label, idStr, ok := splitLabel(lines[first])
	if !ok || label != labelID {
		return model.Listing{}, ErrMissingID
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return model.Listing{}, fmt.Errorf("%w: %q", ErrMissingID, idStr)
	}

	urlLine := -1
	for i := len(lines) - 1; i > first; i-- {
		if label, _, ok := splitLabel(lines[i]); ok && label == labelURL {
			urlLine = i
			break
		}
	}

	fields := make(map[string]string, len(renderLabels))
	current := ""
	for i := first + 1; i < len(lines); i++ {
		line := lines[i]
		label, value, ok := splitLabel(line)
		switch {
		case !ok, label == labelID:
			ok = false
		case current == labelDescription && i != urlLine:
			ok = false
		case label == labelURL && urlLine >= 0 && i != urlLine:
			ok = false
		default:
			_, seen := fields[label]
			ok = !seen
		}
		if ok {
			fields[label] = value
			current = label
			continue
		}
		if current != "" && line != "" {
			fields[current] = strings.TrimSpace(fields[current] + "\n" + line)
		}
	}

	return model.Listing{
		ID:           id,
		Location:     fields[labelLocation],
		Neighborhood: fields[labelNeighborhood],
		Area:         fields[labelArea],
		Price:        fields[labelPrice],
		Fee:          fields[labelFee],
		Bedrooms:     parseOptionalInt(fields[labelBedrooms]),
		Bathrooms:    parseOptionalInt(fields[labelBathrooms]),
		ParkingSpots: parseOptionalInt(fields[labelParking]),
		Description:  fields[labelDescription],
		URL:          fields[labelURL],
	}, nil
}

func splitLabel(line string) (label, value string, ok bool) {
	for _, l := range renderLabels {
		if !strings.HasPrefix(line, l) {
			continue
		}
		rest := strings.TrimLeft(line[len(l):], " ")
		if !strings.HasPrefix(rest, ":") {
			continue
		}
		return l, strings.TrimSpace(rest[1:]), true
	}
	return "", "", false
}

func optionalInt(v *int) string {
	if v == nil {
		return notAvailable
	}
	return strconv.Itoa(*v)
}

// parseOptionalInt takes the first run of digits, so "3 habitaciones" yields 3
// and "N/A" or "None" yield nil.
func parseOptionalInt(s string) *int {
	m := digitsRe.FindString(s)
	if m == "" {
		return nil
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return nil
	}
	return &n
}
