package request

type CreateScheduleRequest struct {
	MovieID    string  `json:"movie_id" validate:"required,uuid4"`
	Theater    string  `json:"theater" validate:"required,max=100"`
	ShowDate   string  `json:"show_date" validate:"required,datetime=2006-01-02"`
	ShowTime   string  `json:"show_time" validate:"required,datetime=15:04"`
	TotalSeats int     `json:"total_seats" validate:"omitempty,min=1,max=260"`
	Price      float64 `json:"price" validate:"gt=0"`
}

// UpdateScheduleRequest changes only the fields that are set. Seat
// inventory cannot be patched.
type UpdateScheduleRequest struct {
	Theater  *string  `json:"theater,omitempty" validate:"omitempty,min=1,max=100"`
	ShowDate *string  `json:"show_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	ShowTime *string  `json:"show_time,omitempty" validate:"omitempty,datetime=15:04"`
	Price    *float64 `json:"price,omitempty" validate:"omitempty,gt=0"`
	IsActive *bool    `json:"is_active,omitempty"`
}

func (r UpdateScheduleRequest) Empty() bool {
	return r.Theater == nil && r.ShowDate == nil && r.ShowTime == nil && r.Price == nil && r.IsActive == nil
}
