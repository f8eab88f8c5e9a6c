package quizmanager

// LevelDef — строка таблицы уровней
type LevelDef struct {
	Level      int    `json:"level"`
	XPRequired int64  `json:"xp_required"`
	Title      string `json:"title"`
	Color      string `json:"color"`
}

// LevelInfo — результат LevelFor
type LevelInfo struct {
	Level             int     `json:"level"`
	Title             string  `json:"title"`
	Color             string  `json:"color"`
	CurrentLevelFloor int64   `json:"current_level_floor"`
	NextLevelFloor    *int64  `json:"next_level_floor"`
	ProgressPercent   float64 `json:"progress_percent"`
}

// levelTable упорядочена по возрастанию XPRequired, первая строка начинается с 0
var levelTable = []LevelDef{
	{Level: 1, XPRequired: 0, Title: "Rookie", Color: "#9CA3AF"},
	{Level: 2, XPRequired: 100, Title: "Apprentice", Color: "#60A5FA"},
	{Level: 3, XPRequired: 250, Title: "Contender", Color: "#34D399"},
	{Level: 4, XPRequired: 500, Title: "Challenger", Color: "#A78BFA"},
	{Level: 5, XPRequired: 1000, Title: "Scholar", Color: "#F472B6"},
	{Level: 6, XPRequired: 2000, Title: "Expert", Color: "#FBBF24"},
	{Level: 7, XPRequired: 3500, Title: "Master", Color: "#F97316"},
	{Level: 8, XPRequired: 5500, Title: "Grandmaster", Color: "#EF4444"},
	{Level: 9, XPRequired: 8000, Title: "Legend", Color: "#8B5CF6"},
	{Level: 10, XPRequired: 12000, Title: "Mythic", Color: "#FDE047"},
}

// Levels возвращает копию таблицы уровней
func Levels() []LevelDef {
	out := make([]LevelDef, len(levelTable))
	copy(out, levelTable)
	return out
}

// LevelFor вычисляет уровень по накопленному XP без обращения к БД.
// Единственный источник истины для путей начисления и чтения.
func LevelFor(xp int64) LevelInfo {
	idx := 0
	for i, def := range levelTable {
		if xp >= def.XPRequired {
			idx = i
		} else {
			break
		}
	}

	cur := levelTable[idx]
	info := LevelInfo{
		Level:             cur.Level,
		Title:             cur.Title,
		Color:             cur.Color,
		CurrentLevelFloor: cur.XPRequired,
	}

	if idx == len(levelTable)-1 {
		info.ProgressPercent = 100
		return info
	}

	next := levelTable[idx+1].XPRequired
	info.NextLevelFloor = &next
	span := next - cur.XPRequired
	gained := xp - cur.XPRequired
	if gained < 0 {
		gained = 0
	}
	info.ProgressPercent = float64(gained) * 100 / float64(span)
	return info
}
