package roster

// disarrayTable maps a disarray level to the minimum signup count that
// reaches it. Ascending in both columns; the resolved level is the highest
// row whose threshold the signup count meets or exceeds. Counts below the
// first row are level 1, counts past the last row clamp at 67.
var disarrayTable = []struct {
	level int
	size  int
}{
	{2, 21}, {3, 22}, {4, 23}, {5, 24}, {6, 25},
	{7, 26}, {8, 27}, {9, 28}, {10, 29}, {11, 30},
	{12, 31}, {13, 32}, {14, 33}, {15, 34}, {16, 36},
	{17, 37}, {18, 39}, {19, 41}, {20, 43}, {21, 46},
	{22, 48}, {23, 49}, {24, 51}, {25, 54}, {26, 56},
	{27, 58}, {28, 61}, {29, 64}, {30, 67}, {31, 70},
	{32, 74}, {33, 79}, {34, 83}, {35, 89}, {36, 95},
	{37, 99}, {38, 103}, {39, 108}, {40, 114}, {41, 119},
	{42, 126}, {43, 133}, {44, 141}, {45, 148}, {46, 154},
	{47, 160}, {48, 167}, {49, 175}, {50, 183}, {51, 192},
	{52, 200}, {53, 207}, {54, 215}, {55, 223}, {56, 232},
	{57, 242}, {58, 252}, {59, 264}, {60, 276}, {61, 290},
	{62, 305}, {63, 322}, {64, 341}, {65, 361}, {66, 385},
	{67, 412},
}

// DisarrayLevel maps a signup count to its severity level.
func DisarrayLevel(signupCount int) int {
	for i := len(disarrayTable) - 1; i >= 0; i-- {
		if signupCount >= disarrayTable[i].size {
			return disarrayTable[i].level
		}
	}
	return 1
}
