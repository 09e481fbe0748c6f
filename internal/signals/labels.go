package signals

import (
	"fmt"
	"strings"
)

// Label is the canonical, closed-set region label vocabulary. Region
// detectors in the wild disagree on naming conventions (e.g. the older
// NudeNet export uses EXPOSED_BREAST_F, newer ones use
// FEMALE_BREAST_EXPOSED); NormalizeLabel maps every known spelling onto one
// of these before a Detection ever reaches fusion or the blur engine.
type Label string

const (
	LabelFemaleGenitaliaExposed Label = "FEMALE_GENITALIA_EXPOSED"
	LabelMaleGenitaliaExposed   Label = "MALE_GENITALIA_EXPOSED"
	LabelFemaleBreastExposed    Label = "FEMALE_BREAST_EXPOSED"
	LabelFemaleBreastCovered    Label = "FEMALE_BREAST_COVERED"
	LabelButtocksExposed        Label = "BUTTOCKS_EXPOSED"
	LabelAnusExposed            Label = "ANUS_EXPOSED"
	LabelBellyExposed           Label = "BELLY_EXPOSED"
	LabelFace                   Label = "FACE"
	LabelFeet                   Label = "FEET"
)

// nsfwLabels is the closed set of labels that count toward the region
// detector's NSFW score. Belly is intentionally excluded from the
// default set and only included by stricter policies via IsNSFW's
// includeBelly argument.
var nsfwLabels = map[Label]bool{
	LabelFemaleGenitaliaExposed: true,
	LabelMaleGenitaliaExposed:   true,
	LabelFemaleBreastExposed:    true,
	LabelButtocksExposed:        true,
	LabelAnusExposed:            true,
	LabelFemaleBreastCovered:    true,
}

// IsNSFW reports whether label counts toward the region NSFW score.
// includeBelly extends the set with BELLY_EXPOSED for stricter policies.
func (l Label) IsNSFW(includeBelly bool) bool {
	if nsfwLabels[l] {
		return true
	}
	return includeBelly && l == LabelBellyExposed
}

// aliases maps every known raw detector label spelling (across schema
// versions) onto the canonical Label above.
var aliases = map[string]Label{
	"EXPOSED_GENITALIA_F":       LabelFemaleGenitaliaExposed,
	"FEMALE_GENITALIA_EXPOSED":  LabelFemaleGenitaliaExposed,
	"EXPOSED_GENITALIA_M":       LabelMaleGenitaliaExposed,
	"MALE_GENITALIA_EXPOSED":    LabelMaleGenitaliaExposed,
	"EXPOSED_BREAST_F":          LabelFemaleBreastExposed,
	"FEMALE_BREAST_EXPOSED":     LabelFemaleBreastExposed,
	"COVERED_BREAST_F":          LabelFemaleBreastCovered,
	"FEMALE_BREAST_COVERED":     LabelFemaleBreastCovered,
	"EXPOSED_BUTTOCKS":          LabelButtocksExposed,
	"BUTTOCKS_EXPOSED":          LabelButtocksExposed,
	"EXPOSED_ANUS":              LabelAnusExposed,
	"ANUS_EXPOSED":              LabelAnusExposed,
	"EXPOSED_BELLY":             LabelBellyExposed,
	"BELLY_EXPOSED":             LabelBellyExposed,
	"FACE_F":                    LabelFace,
	"FACE_M":                    LabelFace,
	"FACE":                      LabelFace,
	"EXPOSED_FEET":              LabelFeet,
	"FEET_EXPOSED":              LabelFeet,
	"FEET":                      LabelFeet,
}

// NormalizeLabel maps a raw detector label string onto the canonical Label
// vocabulary. It returns an error for anything unrecognized rather than
// silently guessing; HTTPNudeNetDetector logs the error and drops that one
// detection instead of aborting the batch (per-signal failures degrade,
// they never abort).
func NormalizeLabel(raw string) (Label, error) {
	if l, ok := aliases[strings.ToUpper(strings.TrimSpace(raw))]; ok {
		return l, nil
	}
	return "", fmt.Errorf("unrecognized region detector label %q", raw)
}
