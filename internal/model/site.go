package model

// Analytics は永続化される集計レコード。
// MonthlyGrowthとUserEngagementは編集者が設定する値で、再計算されない。
type Analytics struct {
	TotalViews       int                `json:"totalViews"`
	TotalSubscribers int                `json:"totalSubscribers"`
	TotalPosts       int                `json:"totalPosts"`
	MonthlyGrowth    float64            `json:"monthlyGrowth"`
	PopularPosts     []string           `json:"popularPosts"`
	UserEngagement   map[string]float64 `json:"userEngagement"`
}

// AnalyticsPatch は編集者設定値の部分更新。
type AnalyticsPatch struct {
	MonthlyGrowth  *float64            `json:"monthlyGrowth,omitempty"`
	UserEngagement *map[string]float64 `json:"userEngagement,omitempty"`
}

// Apply はパッチをaに適用する。
func (p AnalyticsPatch) Apply(a *Analytics) {
	if p.MonthlyGrowth != nil {
		a.MonthlyGrowth = *p.MonthlyGrowth
	}
	if p.UserEngagement != nil {
		a.UserEngagement = copyEngagement(*p.UserEngagement)
	}
}

// AnalyticsReport は購読者・記事コレクションから都度計算される集計ビュー。
type AnalyticsReport struct {
	TotalSubscribers  int                `json:"totalSubscribers"`
	ActiveSubscribers int                `json:"activeSubscribers"`
	TotalPosts        int                `json:"totalPosts"`
	TotalViews        int                `json:"totalViews"`
	MonthlyGrowth     float64            `json:"monthlyGrowth"`
	UserEngagement    map[string]float64 `json:"userEngagement"`
	PopularPosts      []string           `json:"popularPosts"`
	RecentSubscribers []Subscriber       `json:"recentSubscribers"`
	RecentPosts       []Post             `json:"recentPosts"`
}

// Settings はサイト全体の設定。上書きのみで履歴は持たない。
type Settings struct {
	SiteName           string `json:"siteName"`
	SiteDescription    string `json:"siteDescription"`
	MaintenanceMode    bool   `json:"maintenanceMode"`
	AllowRegistrations bool   `json:"allowRegistrations"`
	MaxSubscribers     int    `json:"maxSubscribers"`
	FeaturedPostsLimit int    `json:"featuredPostsLimit"`
}

// SettingsPatch はサイト設定の部分更新。
type SettingsPatch struct {
	SiteName           *string `json:"siteName,omitempty"`
	SiteDescription    *string `json:"siteDescription,omitempty"`
	MaintenanceMode    *bool   `json:"maintenanceMode,omitempty"`
	AllowRegistrations *bool   `json:"allowRegistrations,omitempty"`
	MaxSubscribers     *int    `json:"maxSubscribers,omitempty"`
	FeaturedPostsLimit *int    `json:"featuredPostsLimit,omitempty"`
}

// Apply はパッチをsに適用する。
func (p SettingsPatch) Apply(s *Settings) {
	if p.SiteName != nil {
		s.SiteName = *p.SiteName
	}
	if p.SiteDescription != nil {
		s.SiteDescription = *p.SiteDescription
	}
	if p.MaintenanceMode != nil {
		s.MaintenanceMode = *p.MaintenanceMode
	}
	if p.AllowRegistrations != nil {
		s.AllowRegistrations = *p.AllowRegistrations
	}
	if p.MaxSubscribers != nil {
		s.MaxSubscribers = nonNegative(*p.MaxSubscribers)
	}
	if p.FeaturedPostsLimit != nil {
		s.FeaturedPostsLimit = nonNegative(*p.FeaturedPostsLimit)
	}
}

// Document はJSONバックエンドが1ファイルに保存する全コレクション。
type Document struct {
	Subscribers []Subscriber `json:"subscribers"`
	Posts       []Post       `json:"posts"`
	Analytics   Analytics    `json:"analytics"`
	Settings    Settings     `json:"settings"`
}

func copyEngagement(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
