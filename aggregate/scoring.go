package aggregate

import (
	"fmt"
	"strings"

	"scoreboard/config"
)

const (
	bonusPointsPerItem = 100
	ntsPointsPerMsg    = 10
	ntsMaxPerKind      = 10
	defaultFDClass     = "1A"
)

// PointsFromMode maps the logger's MODETEST category onto Field Day QSO
// points: phone is worth 1, CW and digital 2, anything else nothing.
func PointsFromMode(modeTest string) int {
	switch strings.ToUpper(strings.TrimSpace(modeTest)) {
	case "PH":
		return 1
	case "CW", "DIG":
		return 2
	default:
		return 0
	}
}

// BonusItem is one claimed bonus line.
type BonusItem struct {
	Name   string `json:"name"`
	Points int    `json:"points"`
}

// FieldDayBonus is the scoring section of a snapshot.
type FieldDayBonus struct {
	BonusPoints     int         `json:"bonusPoints"`
	BonusBreakdown  []BonusItem `json:"bonusBreakdown"`
	ClassMultiplier int         `json:"classMultiplier"`
	PowerMultiplier int         `json:"powerMultiplier"`
	FDClass         string      `json:"fdClass"`
}

// ClassMultiplier returns the transmitter count encoded as the leading digit
// of a Field Day class ("2O" -> 2). Anything else counts as 1.
func ClassMultiplier(class string) int {
	class = strings.TrimSpace(class)
	if class == "" || class[0] < '0' || class[0] > '9' {
		return 1
	}
	return int(class[0] - '0')
}

// CalculateBonus evaluates the claimed bonuses in the order the ARRL rules
// list them.
func CalculateBonus(sc config.ScoringConfig) FieldDayBonus {
	class := strings.TrimSpace(sc.FieldDayClass)
	if class == "" {
		class = defaultFDClass
	}
	out := FieldDayBonus{
		BonusBreakdown:  []BonusItem{},
		ClassMultiplier: ClassMultiplier(class),
		PowerMultiplier: 1,
		FDClass:         class,
	}
	if sc.EmergencyPower {
		out.PowerMultiplier = 2
	}
	add := func(claimed bool, name string) {
		if !claimed {
			return
		}
		out.BonusPoints += bonusPointsPerItem
		out.BonusBreakdown = append(out.BonusBreakdown, BonusItem{Name: name, Points: bonusPointsPerItem})
	}

	add(sc.EmergencyPower, "100% Emergency Power")
	add(sc.MediaPublicity, "Media Publicity")
	add(sc.PublicLocation, "Public Location")
	add(sc.PublicInformationTable, "Public Information Table")

	msgs := clampNTS(sc.NTSMessageOriginated) + clampNTS(sc.NTSMessageHandled)
	if pts := msgs * ntsPointsPerMsg; pts > 0 {
		out.BonusPoints += pts
		out.BonusBreakdown = append(out.BonusBreakdown, BonusItem{
			Name:   fmt.Sprintf("NTS Messages (%d)", msgs),
			Points: pts,
		})
	}

	add(sc.SatelliteQSO, "Satellite QSO")
	add(sc.W1AWBulletin, "W1AW Bulletin Copy")
	add(sc.EducationalActivity, "Educational Activity")
	add(sc.SocialMedia, "Social Media")
	add(sc.YouthParticipation, "Youth Participation")
	add(sc.SiteVisitOfficial, "Site Visit by Official")
	return out
}

func clampNTS(n int) int {
	if n < 0 {
		return 0
	}
	if n > ntsMaxPerKind {
		return ntsMaxPerKind
	}
	return n
}

// FinalScore applies the Field Day formula: QSO points x class x power + bonus.
func FinalScore(basePoints int, bonus *FieldDayBonus) int {
	if bonus == nil {
		return basePoints
	}
	return basePoints*bonus.ClassMultiplier*bonus.PowerMultiplier + bonus.BonusPoints
}
