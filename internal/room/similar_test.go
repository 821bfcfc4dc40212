package room

import "testing"

func TestSimilar(t *testing.T) {
	porch := New("The Quiet Porch", "slow mornings watching the street", "Order Seeking", "The Regular Club", "")
	cands := []*Room{
		porch,
		New("Morning Porch Ritual", "watching the street wake up", "Order Seeking", "The Line", ""),
		New("The Porch at Dusk", "watching light fade", "Nature Mirroring", "The Descent", ""),
		New("Subway Reader", "books between stops", "Anxiety Navigation", "The WiFi Fails", ""),
	}

	got := Similar(porch, cands)
	if len(got) == 0 {
		t.Fatal("expected at least one similar room")
	}
	if got[0].Room.Name != "Morning Porch Ritual" {
		t.Errorf("best match = %q, want Morning Porch Ritual", got[0].Room.Name)
	}
	for i, m := range got {
		if m.Room.ID == porch.ID {
			t.Error("a room must not match itself")
		}
		if m.Room.Name == "Subway Reader" {
			t.Error("unrelated room should not match")
		}
		if i > 0 && m.Score > got[i-1].Score {
			t.Error("matches should be ordered best first")
		}
	}
}

func TestSimilar_NoKeywords(t *testing.T) {
	r := New("The", "", "A", "F", "")
	if got := Similar(r, []*Room{New("It", "", "A", "F", "")}); len(got) != 0 {
		t.Errorf("stop words alone should not match, got %v", got)
	}
}
