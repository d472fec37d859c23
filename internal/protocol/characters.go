package protocol

// Character is a cosmetic skin choice. The registry is fixed; selection has
// no gameplay effect.
type Character struct {
	ID   string
	Name string
}

var Characters = []Character{
	{ID: "scout", Name: "Scout"},
	{ID: "rocket", Name: "Rocket"},
	{ID: "puff", Name: "Puff"},
	{ID: "ember", Name: "Ember"},
	{ID: "frost", Name: "Frost"},
	{ID: "volt", Name: "Volt"},
	{ID: "shade", Name: "Shade"},
}

// ValidCharacterID reports whether id names a registered character.
func ValidCharacterID(id string) bool {
	for _, c := range Characters {
		if c.ID == id {
			return true
		}
	}
	return false
}

// PickDefaultCharacter deterministically assigns a character from the player
// id so an unpicked player looks the same on every peer.
func PickDefaultCharacter(playerID string) string {
	h := uint32(2166136261)
	for i := 0; i < len(playerID); i++ {
		h ^= uint32(playerID[i])
		h *= 16777619
	}
	return Characters[h%uint32(len(Characters))].ID
}
