package entry

import "time"

// Entry is one feeding or medical reading. Every measurement is optional.
type Entry struct {
	ID                string    `json:"id"`
	Time              time.Time `json:"time"`
	FeedingAmount     *float64  `json:"feedingAmount"`
	Sensor            *float64  `json:"sensor"`
	GlucometerReading *float64  `json:"glucometerReading"`
	Drip              *float64  `json:"drip"`
	NutritionType     *string   `json:"nutritionType"`
	Extra             *string   `json:"extra"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

type EntryInput struct {
	Time              string   `json:"time"`
	FeedingAmount     *float64 `json:"feedingAmount"`
	Sensor            *float64 `json:"sensor"`
	GlucometerReading *float64 `json:"glucometerReading"`
	Drip              *float64 `json:"drip"`
	NutritionType     *string  `json:"nutritionType"`
	Extra             *string  `json:"extra"`

	parsedTime time.Time
}
