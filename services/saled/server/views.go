package server

import (
	"crybsale/core"
	"crybsale/native/sale"
)

type phaseView struct {
	Index            int    `json:"index"`
	Name             string `json:"name"`
	StartTime        int64  `json:"startTime"`
	EndTime          int64  `json:"endTime"`
	Rate             string `json:"rate"`
	MaxAllocation    string `json:"maxAllocation,omitempty"`
	Gated            bool   `json:"gated"`
	Window           string `json:"window"`
	AvailableForSale string `json:"availableForSale"`
	Sold             string `json:"sold"`
	Raised           string `json:"raised"`
}

type saleView struct {
	Now              int64       `json:"now"`
	Layout           string      `json:"layout"`
	CeilingMode      string      `json:"ceilingMode"`
	VestingStartMode string      `json:"vestingStartMode"`
	ActivePhase      int         `json:"activePhase"`
	TotalRaised      string      `json:"totalRaised"`
	TotalSold        string      `json:"totalSold"`
	Withdrawn        string      `json:"withdrawn"`
	AvailableForSale string      `json:"availableForSale"`
	Remaining        string      `json:"remaining"`
	Phases           []phaseView `json:"phases"`
}

type positionView struct {
	Beneficiary   string `json:"beneficiary"`
	Index         uint64 `json:"index"`
	Origin        string `json:"origin"`
	Amount        string `json:"amount"`
	TotalClaimed  string `json:"totalClaimed"`
	Releasable    string `json:"releasable"`
	StartTime     int64  `json:"startTime"`
	Cliff         int64  `json:"cliff"`
	Duration      int64  `json:"duration"`
	PeriodClaimed int64  `json:"periodClaimed"`
	CreatedAt     int64  `json:"createdAt"`
}

func renderPhase(p core.PhaseStatus) phaseView {
	view := phaseView{
		Index:            p.Index,
		Name:             p.Name,
		StartTime:        p.StartTime,
		EndTime:          p.EndTime,
		Rate:             amountString(p.Rate),
		Gated:            p.Gated,
		Window:           p.Window,
		AvailableForSale: amountString(p.AvailableForSale),
		Sold:             amountString(p.Sold),
		Raised:           amountString(p.Raised),
	}
	if p.MaxAllocation != nil && p.MaxAllocation.Sign() > 0 {
		view.MaxAllocation = p.MaxAllocation.String()
	}
	return view
}

func renderSale(st *core.SaleStatus) saleView {
	view := saleView{
		Now:              st.Now,
		Layout:           string(st.Layout),
		CeilingMode:      string(st.CeilingMode),
		VestingStartMode: string(st.VestingStartMode),
		ActivePhase:      st.ActivePhase,
		TotalRaised:      amountString(st.TotalRaised),
		TotalSold:        amountString(st.TotalSold),
		Withdrawn:        amountString(st.Withdrawn),
		AvailableForSale: amountString(st.AvailableForSale),
		Remaining:        amountString(st.Remaining),
		Phases:           make([]phaseView, 0, len(st.Phases)),
	}
	for _, phase := range st.Phases {
		view.Phases = append(view.Phases, renderPhase(phase))
	}
	return view
}

func renderPosition(p core.PositionView) positionView {
	pos := p.Position
	if pos == nil {
		pos = &sale.Position{}
	}
	return positionView{
		Beneficiary:   address(pos.Beneficiary),
		Index:         pos.Index,
		Origin:        string(pos.Origin),
		Amount:        amountString(pos.Amount),
		TotalClaimed:  amountString(pos.TotalClaimed),
		Releasable:    amountString(p.Releasable),
		StartTime:     pos.StartTime,
		Cliff:         pos.Cliff,
		Duration:      pos.Duration,
		PeriodClaimed: pos.PeriodClaimed,
		CreatedAt:     pos.CreatedAt,
	}
}
