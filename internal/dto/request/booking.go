package request

type CreateBookingRequest struct {
	ScheduleID string `json:"schedule_id" validate:"required,uuid4"`
	// at most one full layout, rows A..Z of ten seats
	Seats      []string `json:"seats" validate:"required,min=1,max=260,unique,dive,required,alphanum,uppercase"`
	TotalPrice float64  `json:"total_price" validate:"gt=0"`
}
