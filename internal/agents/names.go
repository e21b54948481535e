package agents

import "hash/fnv"

// explorerNames is the pool of display names attached to agent instances in
// progress events and logs. The list is fixed so the same topic always shows
// the same names across reconnects.
var explorerNames = []string{
	"Amundsen", "Barents", "Bering", "Cabot", "Cartier",
	"Cousteau", "Drake", "Earhart", "Eriksson", "Fiennes",
	"Gagarin", "Hedin", "Heyerdahl", "Hillary", "Humboldt",
	"Kingsley", "Livingstone", "Magellan", "Nansen", "Norgay",
	"Peary", "Piccard", "Polo", "Przhevalsky", "Ride",
	"Shackleton", "Tasman", "Tereshkova", "Vespucci", "Zheng",
}

// DisplayName returns a deterministic display name for an agent slot within
// a topic. The same topicID and index always map to the same name.
func DisplayName(topicID string, index int) string {
	if len(explorerNames) == 0 {
		return ""
	}
	hash := fnv32a(topicID)
	return explorerNames[(int(hash)+index)%len(explorerNames)]
}

func fnv32a(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}
