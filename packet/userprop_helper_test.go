package packet

// upLen reports 1 if a UserProperty pair is set, 0 otherwise. UserProperty
// is a single Name/Value pair rather than a map, so tests written against
// the old map-shaped field compare against this instead of len().
func upLen(u UserProperty) int {
	if u.Name == "" && u.Value == "" {
		return 0
	}
	return 1
}
