// Package mockdata provides the seeded data set backing the console while
// there is no upstream user service: the registered-user list, dashboard
// statistics, and the registration trend chart.
package mockdata

import (
	"fmt"
	"math/rand"
	"time"

	"lookmeal-admin/internal/domain"
)

const userCount = 5000

// Fixed seed so every process derives the identical user set.
const seed = 20240112

var names = []string{
	"ゆうと", "ニックネーム太郎1文字", "わんこ好き", "はるかぜ", "あおい",
	"ポンたろう", "まさやん", "なっこ", "ひなたぽん", "ひまわりさん",
}

var domains = []string{
	"@example.com", "@example.net", "@gmail.com", "@yahoo.co.jp",
	"@outlook.com", "@example.org", "@example.jp",
}

var roles = []string{"管理者", "会員"}

var genders = []string{"男性", "女性", "その他"}

var prefectures = []string{
	"東京都", "大阪府", "愛知県", "神奈川県", "埼玉県",
	"千葉県", "兵庫県", "北海道", "福岡県", "静岡県",
}

// Users generates the mock registered-user set. The result is deterministic
// and freshly allocated on every call, so callers may reorder it freely.
func Users() []domain.User {
	rng := rand.New(rand.NewSource(seed))
	lastLogin := time.Date(2024, time.January, 12, 0, 0, 0, 0, time.UTC)

	users := make([]domain.User, 0, userCount)
	for i := 1; i <= userCount; i++ {
		name := names[(i-1)%len(names)]
		if i > 10 {
			name = fmt.Sprintf("%s%d", name, i)
		}

		registered := time.Date(
			1992+rng.Intn(33),
			time.Month(rng.Intn(12)+1),
			rng.Intn(28)+1,
			0, 0, 0, 0, time.UTC,
		)

		u := domain.User{
			ID:           fmt.Sprintf("%02d", i),
			Name:         name,
			Email:        fmt.Sprintf("user%d%s", i, domains[(i-1)%len(domains)]),
			Role:         roles[rng.Intn(len(roles))],
			Status:       domain.UserStatusActive,
			RegisteredAt: registered,
			Gender:       genders[rng.Intn(len(genders))],
			Prefecture:   prefectures[rng.Intn(len(prefectures))],
		}
		if rng.Intn(10) >= 3 {
			t := lastLogin
			u.LastLoginAt = &t
		}
		if rng.Intn(2) == 1 {
			u.Status = domain.UserStatusInactive
		}
		users = append(users, u)
	}
	return users
}

// DashboardStats returns the headline dashboard figures.
func DashboardStats() domain.DashboardStats {
	return domain.DashboardStats{
		TotalUsers:             450,
		ActiveUsers:            50,
		NewRegistrations:       10,
		MonthlyGrowth:          4,
		UserGrowthPercentage:   12.5,
		ActiveUserPercentage:   11.1,
		RegistrationPercentage: -5.6,
		GrowthPercentage:       12.5,
	}
}

// ChartData returns the twelve-month registration trend.
func ChartData() []domain.ChartPoint {
	return []domain.ChartPoint{
		{Month: "1月", Users: 120},
		{Month: "2月", Users: 180},
		{Month: "3月", Users: 250},
		{Month: "4月", Users: 320},
		{Month: "5月", Users: 380},
		{Month: "6月", Users: 420},
		{Month: "7月", Users: 450},
		{Month: "8月", Users: 380},
		{Month: "9月", Users: 320},
		{Month: "10月", Users: 280},
		{Month: "11月", Users: 240},
		{Month: "12月", Users: 200},
	}
}
