package handler

import (
	"time"

	"github.com/iliyamo/mensa-reservation/internal/model"
	"github.com/iliyamo/mensa-reservation/internal/service"
)

// ----- DTOs -----

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type userPart struct {
	ID        uint64  `json:"id"`
	Username  string  `json:"username"`
	Email     string  `json:"email"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	StudentID *string `json:"student_id,omitempty"`
	Role      string  `json:"role"`
}

type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

type menuResp struct {
	ID          uint64  `json:"id"`
	Date        string  `json:"date"`
	FirstCourse string  `json:"first_course"`
	MainCourse  string  `json:"main_course"`
	SideDish    string  `json:"side_dish"`
	Fruit       *string `json:"fruit,omitempty"`
	Dessert     *string `json:"dessert,omitempty"`
	Price       string  `json:"price"`
	Available   bool    `json:"available"`
	ManagerID   uint64  `json:"manager_id"`
}

type reservationResp struct {
	ID          uint64       `json:"id"`
	MenuID      uint64       `json:"menu_id"`
	UserID      uint64       `json:"user_id"`
	PickupSlot  string       `json:"pickup_slot"`
	Note        *string      `json:"note,omitempty"`
	Status      model.Status `json:"status"`
	PaymentRef  *string      `json:"payment_ref,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	MenuDate    string       `json:"menu_date,omitempty"`
	FirstCourse string       `json:"first_course,omitempty"`
	MainCourse  string       `json:"main_course,omitempty"`
	SideDish    string       `json:"side_dish,omitempty"`
	Username    string       `json:"username,omitempty"`
}

type transactionResp struct {
	ID              uint64    `json:"id"`
	ReservationID   *uint64   `json:"reservation_id,omitempty"`
	Kind            string    `json:"kind"`
	Amount          string    `json:"amount"`
	Method          string    `json:"method"`
	Status          string    `json:"status"`
	ExternalOrderID *string   `json:"external_order_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func toUser(u model.User) userPart {
	return userPart{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		StudentID: u.StudentID,
		Role:      u.Role,
	}
}

func toAuth(s *service.Session) authResp {
	return authResp{
		User:    toUser(s.User),
		Access:  tokenPart{Token: s.Access.Token, Expires: s.Access.Exp},
		Refresh: tokenPart{Token: s.Refresh.Raw, Expires: s.Refresh.Exp}, // raw back to client
	}
}

func toMenu(m model.Menu) menuResp {
	return menuResp{
		ID:          m.ID,
		Date:        m.DateString(),
		FirstCourse: m.FirstCourse,
		MainCourse:  m.MainCourse,
		SideDish:    m.SideDish,
		Fruit:       m.Fruit,
		Dessert:     m.Dessert,
		Price:       m.Price.StringFixed(2),
		Available:   m.Available,
		ManagerID:   m.ManagerID,
	}
}

func toMenus(ms []model.Menu) []menuResp {
	out := make([]menuResp, 0, len(ms))
	for _, m := range ms {
		out = append(out, toMenu(m))
	}
	return out
}

func toReservation(r model.Reservation) reservationResp {
	return reservationResp{
		ID:         r.ID,
		MenuID:     r.MenuID,
		UserID:     r.UserID,
		PickupSlot: r.PickupSlot,
		Note:       r.Note,
		Status:     r.Status,
		PaymentRef: r.PaymentRef,
		CreatedAt:  r.CreatedAt,
	}
}

func toDetail(d model.ReservationDetail) reservationResp {
	out := toReservation(d.Reservation)
	if !d.MenuDate.IsZero() {
		out.MenuDate = d.MenuDate.Format(model.DateLayout)
	}
	out.FirstCourse, out.MainCourse, out.SideDish, out.Username = d.FirstCourse, d.MainCourse, d.SideDish, d.Username
	return out
}

func toDetails(ds []model.ReservationDetail) []reservationResp {
	out := make([]reservationResp, 0, len(ds))
	for _, d := range ds {
		out = append(out, toDetail(d))
	}
	return out
}

func toTransaction(t model.Transaction) transactionResp {
	return transactionResp{
		ID:              t.ID,
		ReservationID:   t.ReservationID,
		Kind:            t.Kind,
		Amount:          t.Amount.StringFixed(2),
		Method:          t.Method,
		Status:          t.Status,
		ExternalOrderID: t.ExternalOrderID,
		CreatedAt:       t.CreatedAt,
	}
}
