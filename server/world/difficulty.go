package world

// Difficulty represents the difficulty of a World, stored by its ordinal in
// the level.dat of the world.
type Difficulty int32

const (
	DifficultyPeaceful Difficulty = iota
	DifficultyEasy
	DifficultyNormal
	DifficultyHard
)

// DifficultyByID returns the Difficulty with the ordinal passed. False is
// returned if id is not in the range 0-3.
func DifficultyByID(id int32) (Difficulty, bool) {
	if id < int32(DifficultyPeaceful) || id > int32(DifficultyHard) {
		return 0, false
	}
	return Difficulty(id), true
}

// String ...
func (d Difficulty) String() string {
	switch d {
	case DifficultyPeaceful:
		return "PEACEFUL"
	case DifficultyEasy:
		return "EASY"
	case DifficultyNormal:
		return "NORMAL"
	case DifficultyHard:
		return "HARD"
	}
	return "UNKNOWN"
}
