package fakeapi

import (
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"

	"github.com/siahsang/beatpost/models"
)

const (
	DemoEmail    = "demo@beatpost.dev"
	DemoPassword = "beatpost"
	DemoUsername = "demo"

	seedPassword = "beatpost123"
)

var seedHashtags = []string{"jazz", "poetry", "road", "bebop", "city", "night", "zen", "typewriter"}

// SeedAccount is a generated user that can log in with Password.
type SeedAccount struct {
	Username string
	Email    string
	Password string
}

// Seed fills the store with a reproducible community. It registers the demo
// account and the given number of authors, then adds posts from the last day
// along with ratings, comments and follows.
func (s *Store) Seed(seed int64, users int) ([]SeedAccount, error) {
	faker := gofakeit.New(seed)

	accounts := []SeedAccount{{Username: DemoUsername, Email: DemoEmail, Password: DemoPassword}}
	for i := range users {
		username := fmt.Sprintf("%s%d", strings.ToLower(faker.Username()), i)
		if len(username) > 30 {
			username = username[:30]
		}
		accounts = append(accounts, SeedAccount{
			Username: username,
			Email:    fmt.Sprintf("%s@beatpost.dev", username),
			Password: seedPassword,
		})
	}

	var created []*models.User
	for _, a := range accounts {
		bio := faker.Sentence(8)
		user, err := s.Register(models.RegisterRequest{Username: a.Username, Email: a.Email, Password: a.Password, Bio: &bio})
		if err != nil {
			return nil, err
		}
		created = append(created, user)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.now()
	for _, author := range created[1:] {
		for range faker.Number(1, 3) {
			at := models.NewTimestamp(now.Add(-time.Duration(faker.Number(5, 23*60)) * time.Minute))
			post := &models.Post{
				ID:             uuid.NewString(),
				Title:          seedTitle(faker),
				Content:        seedContent(faker),
				Hashtags:       pickHashtags(faker),
				AuthorID:       author.ID,
				AuthorUsername: author.Username,
				Visits:         int64(faker.Number(0, 200)),
				CreatedAt:      at,
				UpdatedAt:      at,
			}
			s.posts = append(s.posts, post)
		}
	}

	for _, post := range s.posts {
		for _, user := range created {
			if user.ID == post.AuthorID {
				continue
			}
			if faker.Number(0, 2) == 0 {
				s.seedRating(post, user, faker.Number(1, 5))
			}
			if faker.Number(0, 3) == 0 {
				s.comments = append(s.comments, &models.Comment{
					ID:             uuid.NewString(),
					PostID:         post.ID,
					AuthorID:       user.ID,
					AuthorUsername: user.Username,
					Content:        faker.Sentence(faker.Number(4, 14)),
					CreatedAt:      models.NewTimestamp(post.CreatedAt.Add(time.Duration(faker.Number(1, 240)) * time.Minute)),
				})
			}
		}
	}

	for _, follower := range created {
		for _, followed := range created {
			if follower.ID != followed.ID && faker.Number(0, 2) == 0 {
				if s.follows[follower.ID] == nil {
					s.follows[follower.ID] = make(map[string]time.Time)
				}
				s.follows[follower.ID][followed.ID] = now
			}
		}
	}
	return accounts, nil
}

func (s *Store) seedRating(post *models.Post, user *models.User, value int) {
	if s.ratings[post.ID] == nil {
		s.ratings[post.ID] = make(map[string]*models.Rating)
	}
	s.ratings[post.ID][user.ID] = &models.Rating{
		ID:        uuid.NewString(),
		PostID:    post.ID,
		UserID:    user.ID,
		Rating:    value,
		CreatedAt: post.CreatedAt,
	}
}

// seedTitle returns a sentence of 20 to 80 characters.
func seedTitle(faker *gofakeit.Faker) string {
	title := faker.Sentence(6)
	for len(title) < 20 {
		title += " " + faker.Word()
	}
	if len(title) > 80 {
		title = strings.TrimSpace(title[:80])
	}
	return title
}

// seedContent returns at least 150 characters of prose.
func seedContent(faker *gofakeit.Faker) string {
	content := faker.Paragraph(2, 4, 12, "\n\n")
	for len(content) < 150 {
		content += " " + faker.Sentence(10)
	}
	return content
}

func pickHashtags(faker *gofakeit.Faker) []string {
	n := faker.Number(1, 3)
	start := faker.Number(0, len(seedHashtags)-1)
	tags := make([]string, 0, n)
	for i := range n {
		tags = append(tags, seedHashtags[(start+i)%len(seedHashtags)])
	}
	return tags
}
