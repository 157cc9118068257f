package aggregate

import (
	"testing"

	"scoreboard/config"
)

func TestCalculateBonusAllClaimed(t *testing.T) {
	sc := config.ScoringConfig{
		FieldDayClass:          "2O",
		EmergencyPower:         true,
		MediaPublicity:         true,
		PublicLocation:         true,
		PublicInformationTable: true,
		NTSMessageOriginated:   4,
		NTSMessageHandled:      -2,
		SatelliteQSO:           true,
		W1AWBulletin:           true,
		EducationalActivity:    true,
		SocialMedia:            true,
		YouthParticipation:     true,
		SiteVisitOfficial:      true,
	}
	b := CalculateBonus(sc)
	if b.BonusPoints != 10*100+40 {
		t.Fatalf("bonus points = %d", b.BonusPoints)
	}
	if len(b.BonusBreakdown) != 11 {
		t.Fatalf("breakdown entries = %d", len(b.BonusBreakdown))
	}
	if b.BonusBreakdown[4].Name != "NTS Messages (4)" {
		t.Fatalf("NTS entry = %+v", b.BonusBreakdown[4])
	}
	if b.ClassMultiplier != 2 || b.PowerMultiplier != 2 {
		t.Fatalf("multipliers = %d/%d", b.ClassMultiplier, b.PowerMultiplier)
	}
}

func TestCalculateBonusDefaults(t *testing.T) {
	b := CalculateBonus(config.ScoringConfig{})
	if b.FDClass != "1A" || b.ClassMultiplier != 1 || b.PowerMultiplier != 1 || b.BonusPoints != 0 {
		t.Fatalf("default bonus = %+v", b)
	}
	if b.BonusBreakdown == nil {
		t.Fatalf("breakdown should be an empty list, not nil")
	}
}

func TestClassMultiplier(t *testing.T) {
	cases := map[string]int{"1A": 1, "3F": 3, "9O": 9, "A": 1, "": 1}
	for in, want := range cases {
		if got := ClassMultiplier(in); got != want {
			t.Fatalf("ClassMultiplier(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestFinalScore(t *testing.T) {
	// 350 points, class 2, emergency power, 500 bonus.
	bonus := &FieldDayBonus{ClassMultiplier: 2, PowerMultiplier: 2, BonusPoints: 500}
	if got := FinalScore(350, bonus); got != 350*2*2+500 {
		t.Fatalf("final score = %d", got)
	}
	if got := FinalScore(350, nil); got != 350 {
		t.Fatalf("nil bonus score = %d", got)
	}
}

func TestFinalScoreWorkedExample(t *testing.T) {
	// 100 QSO points, class x2, power x2, 300 bonus points.
	bonus := &FieldDayBonus{ClassMultiplier: 2, PowerMultiplier: 2, BonusPoints: 300}
	if got := FinalScore(100, bonus); got != 700 {
		t.Fatalf("final score = %d, want 700", got)
	}
}
