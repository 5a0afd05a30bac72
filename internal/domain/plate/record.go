package plate

import "strings"

// Separator delimits the segments of a raw plate string.
const Separator = " | "

// Record is a parsed Moroccan plate: "<number> | <letter> | <region code>".
type Record struct {
	Number       string `json:"plate_number"`
	ArabicLetter string `json:"arabic_letter"`
	RegionCode   string `json:"region_code"`
	RegionName   string `json:"region_name"`
}

// Parse never fails. Missing segments are left empty and segments past the
// third are ignored.
func Parse(raw string) Record {
	parts := strings.Split(raw, Separator)

	rec := Record{}
	if len(parts) > 0 {
		rec.Number = parts[0]
	}
	if len(parts) > 1 {
		rec.ArabicLetter = parts[1]
	}
	if len(parts) > 2 {
		rec.RegionCode = parts[2]
	}
	rec.RegionName = RegionName(rec.RegionCode)
	return rec
}

func (r Record) String() string {
	return strings.Join([]string{r.Number, r.ArabicLetter, r.RegionCode}, Separator)
}
