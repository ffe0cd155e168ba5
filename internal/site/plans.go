package site

// Plan is one column of the pricing table.
type Plan struct {
	Name        string
	Price       string
	Period      string
	Description string
	Features    []string
	CTA         string
	CTAHref     string
	Highlighted bool
}

// Plans is the pricing table.
var Plans = []Plan{
	{
		Name:        "Free",
		Price:       "$0",
		Period:      "forever",
		Description: "Try it on your next meeting.",
		Features: []string{
			"60 transcription minutes per month",
			"3 folders",
			"Export to text",
		},
		CTA:     "Get started",
		CTAHref: "/signup",
	},
	{
		Name:        "Pro",
		Price:       "$19",
		Period:      "per month",
		Description: "For people who live in meetings.",
		Features: []string{
			"1,200 transcription minutes per month",
			"Unlimited folders",
			"Summaries and action items",
			"Choice of AI model",
			"Priority processing",
		},
		CTA:         "Start free trial",
		CTAHref:     "/signup?plan=pro",
		Highlighted: true,
	},
	{
		Name:        "Team",
		Price:       "$49",
		Period:      "per seat / month",
		Description: "Shared libraries for the whole team.",
		Features: []string{
			"Everything in Pro",
			"Shared folders",
			"Admin console and API keys",
			"SSO on request",
		},
		CTA:     "Contact sales",
		CTAHref: "/contact",
	},
}
