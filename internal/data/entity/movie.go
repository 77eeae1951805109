package entity

// Movie is the catalog view the booking core needs: a title for receipts
// and check-in payloads.
type Movie struct {
	Base
	Title             string  `db:"title"`
	PosterURL         *string `db:"poster_url"`
	DurationInMinutes int     `db:"duration_in_minutes"`
}
