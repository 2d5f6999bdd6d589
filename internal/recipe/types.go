package recipe

import "time"

// Macros is a per-serving nutritional snapshot.
type Macros struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

// IsZero reports whether no macro value is known.
func (m Macros) IsZero() bool {
	return m.Calories == 0 && m.Protein == 0 && m.Carbs == 0 && m.Fat == 0
}

// MealPrepFlags are the recipe-intrinsic batch cooking and storage attributes.
type MealPrepFlags struct {
	BatchFriendly        bool   `json:"batch_friendly"`
	Freezable            bool   `json:"freezable"`
	WeeklyPrepFriendly   bool   `json:"weekly_prep_friendly"`
	MealPrepSuitable     bool   `json:"meal_prep_suitable"`
	StorageInstructions  string `json:"storage_instructions,omitempty"`
	FridgeStorageDays    int    `json:"fridge_storage_days,omitempty"`    // 0 = unknown
	FreezerStorageMonths int    `json:"freezer_storage_months,omitempty"` // 0 = unknown
	Servings             int    `json:"servings"`
}

// HasStorageInfo reports whether any storage guidance is present.
func (f MealPrepFlags) HasStorageInfo() bool {
	return f.StorageInstructions != "" || f.FridgeStorageDays > 0 || f.FreezerStorageMonths > 0
}

// Recipe is the scoring unit handed to the ranking engine.
type Recipe struct {
	ID          string        `json:"id"`
	Title       string        `json:"title,omitempty"`
	Cuisine     string        `json:"cuisine"`
	CookTime    int           `json:"cook_time"` // minutes
	Macros      Macros        `json:"macros"`
	Ingredients []string      `json:"ingredients"`
	MealPrep    MealPrepFlags `json:"meal_prep"`
	CreatedAt   time.Time     `json:"created_at"`
}

// MacroGoals is a user's daily macro budget.
type MacroGoals struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}
