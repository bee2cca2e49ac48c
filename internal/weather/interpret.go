package weather

import (
	"math"
	"strconv"
	"strings"

	"github.com/yegors/co-wx/internal/physics"
)

// Interpret classifies a response body of the METAR data server.
//
// An <error> element wins over anything else in the body. A missing
// <altim_in_hg> is a well-formed empty result. All other fields are optional.
func Interpret(body string) Outcome {
	pos := 0
	if msg := ExtractTag(body, "<error>", &pos); msg != "" {
		return Outcome{Kind: OutcomeProtocolError, Message: msg}
	}

	val := ExtractTag(body, "<altim_in_hg>", &pos)
	if val == "" {
		return Outcome{Kind: OutcomeNotFound}
	}

	inHg, err := parseDecimal(val)
	if err != nil {
		return Outcome{Kind: OutcomeParseError, Message: "altim_in_hg is not a number: " + strconv.Quote(val)}
	}

	obs := Observation{PressureHPa: physics.InHgToHPa(inHg)}

	// remaining fields come before the altimeter in the document
	pos = 0
	obs.RawText = ExtractTag(body, "<raw_text>", &pos)
	obs.StationID = ExtractTag(body, "<station_id>", &pos)
	obs.Latitude = parseOptionalFloat(ExtractTag(body, "<latitude>", &pos))
	obs.Longitude = parseOptionalFloat(ExtractTag(body, "<longitude>", &pos))

	return Outcome{Kind: OutcomeSuccess, Observation: &obs}
}

func parseOptionalFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	f, err := parseDecimal(s)
	if err != nil {
		return nil
	}
	return &f
}

// parseDecimal accepts plain decimal notation only. strconv.ParseFloat on its
// own also takes NaN, Inf and hex floats.
func parseDecimal(s string) (float64, error) {
	s = strings.TrimSpace(s)
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-', r == '+', r == 'e', r == 'E':
		default:
			return 0, strconv.ErrSyntax
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, strconv.ErrRange
	}
	return f, nil
}
