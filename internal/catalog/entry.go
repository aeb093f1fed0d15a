package catalog

// File is the operator resource catalog.
type File struct {
	Resources []Entry `yaml:"resources" validate:"dive"`
}

// Entry describes one bookable resource.
type Entry struct {
	Name              string         `yaml:"name" validate:"required,max=256"`
	Slug              string         `yaml:"slug" validate:"omitempty,max=160"`
	Type              string         `yaml:"type" validate:"required,oneof=room desk office event_space"`
	Capacity          *int           `yaml:"capacity" validate:"omitempty,gt=0"`
	OpensAt           string         `yaml:"opens_at" validate:"required_with=ClosesAt"`
	ClosesAt          string         `yaml:"closes_at" validate:"required_with=OpensAt"`
	BufferMinutes     int            `yaml:"buffer_minutes" validate:"gte=0"`
	MinBookingMinutes int            `yaml:"min_booking_minutes" validate:"required,gt=0"`
	MaxBookingMinutes *int           `yaml:"max_booking_minutes" validate:"omitempty,gt=0"`
	HourlyRate        string         `yaml:"hourly_rate" validate:"omitempty,numeric"`
	DailyRate         string         `yaml:"daily_rate" validate:"omitempty,numeric"`
	MonthlyRate       string         `yaml:"monthly_rate" validate:"omitempty,numeric"`
	Currency          string         `yaml:"currency" validate:"omitempty,len=3,uppercase"`
	RequiresApproval  bool           `yaml:"requires_approval"`
	Inactive          bool           `yaml:"inactive"`
	Attributes        map[string]any `yaml:"attributes"`
	PricingRules      []RuleEntry    `yaml:"pricing_rules" validate:"dive"`
}

// RuleEntry is a per-plan pricing rule.
type RuleEntry struct {
	PlanID           int64  `yaml:"plan_id" validate:"required,gt=0"`
	DiscountPercent  string `yaml:"discount_percent" validate:"omitempty,numeric"`
	FreeHoursMonthly string `yaml:"free_hours_monthly" validate:"omitempty,numeric"`
}
