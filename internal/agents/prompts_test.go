package agents

import (
	"strings"
	"testing"
)

func TestKnown(t *testing.T) {
	if !Known(LandAcquisition) || !Known(FixAndFlip) {
		t.Error("built-in agent types should be known")
	}
	if Known("wholesale") {
		t.Error("unknown agent type should not be known")
	}
}

func TestScanSystemPrompt(t *testing.T) {
	prompt, ok := ScanSystemPrompt(LandAcquisition, "Las Vegas, NV", 2026)
	if !ok {
		t.Fatal("expected prompt for land_acquisition")
	}
	if !strings.Contains(prompt, "land acquisition analyst") {
		t.Error("missing agent persona")
	}
	if !strings.Contains(prompt, "STRICT DATA INTEGRITY RULES") {
		t.Error("missing data integrity rules")
	}
	if !strings.HasSuffix(prompt, "CURRENT MARKET: Las Vegas, NV\nCURRENT YEAR: 2026") {
		t.Error("missing market and year suffix")
	}

	if _, ok := ScanSystemPrompt("wholesale", "Las Vegas, NV", 2026); ok {
		t.Error("expected no prompt for unknown agent type")
	}
}

func TestScanDirective(t *testing.T) {
	land := ScanDirective(LandAcquisition, "Henderson, NV", 2026)
	if !strings.Contains(land, "MARKET LOCK: Every deal MUST be physically located in Henderson, NV") {
		t.Error("land directive missing market lock")
	}
	if !strings.Contains(land, "2.0 acres or larger") {
		t.Error("land directive missing acreage floor")
	}
	if !strings.Contains(land, "ONLY return listings dated 2026 or 2025") {
		t.Error("land directive missing currency window")
	}

	flip := ScanDirective(FixAndFlip, "Henderson, NV", 2026)
	if !strings.Contains(flip, "foreclosure listings 2026") {
		t.Error("flip directive missing distress searches")
	}
	if strings.Contains(flip, "acres") {
		t.Error("flip directive should not mention acreage")
	}
}

func TestIsLandContext(t *testing.T) {
	if !IsLandContext("You are a Land Acquisition analyst.") {
		t.Error("expected land context for land acquisition prompt")
	}
	if !IsLandContext("Find parcels of at least 2 ACRES.") {
		t.Error("expected land context for acreage mention")
	}
	if IsLandContext("You are a fix & flip analyst.") {
		t.Error("did not expect land context for flip prompt")
	}
}
