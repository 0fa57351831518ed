package seed

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/blanx-app/backend/internal/logger"
	"github.com/blanx-app/backend/internal/models"
	"github.com/brianvoe/gofakeit/v7"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Seeder handles database seeding operations
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	_ = gofakeit.Seed(time.Now().UnixNano())
	return &Seeder{db: db}
}

// SeedDev seeds the development database with realistic data
func (s *Seeder) SeedDev() error {
	log := func(msg string) {
		logger.Log.Info(msg)
	}

	log("Creating users...")
	users, err := s.seedUsers(50)
	if err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}

	log("Creating posts...")
	posts, err := s.seedPosts(users, 200)
	if err != nil {
		return fmt.Errorf("failed to seed posts: %w", err)
	}

	log("Creating follows...")
	if err := s.seedFollows(users); err != nil {
		return fmt.Errorf("failed to seed follows: %w", err)
	}

	log("Creating comments...")
	comments, err := s.seedComments(users, posts, 500)
	if err != nil {
		return fmt.Errorf("failed to seed comments: %w", err)
	}

	log("Creating likes...")
	if err := s.seedLikes(users, posts, 800); err != nil {
		return fmt.Errorf("failed to seed likes: %w", err)
	}

	log("Creating notifications...")
	if err := s.seedNotifications(users, posts, comments); err != nil {
		return fmt.Errorf("failed to seed notifications: %w", err)
	}

	return nil
}

// SeedTest seeds the test database with minimal fixed data
func (s *Seeder) SeedTest() error {
	log := func(msg string) {
		logger.Log.Info(msg)
	}

	log("Creating test users...")
	testUserSpecs := []struct {
		username string
		email    string
		fullName string
	}{
		{"alice", "alice@example.com", "Alice Smith"},
		{"bob", "bob@example.com", "Bob Johnson"},
		{"charlie", "charlie@example.com", "Charlie Brown"},
		{"diana", "diana@example.com", "Diana Prince"},
		{"eve", "eve@example.com", "Eve Wilson"},
	}

	var users []models.User
	for _, spec := range testUserSpecs {
		var user models.User
		err := s.db.Where("username = ? OR email = ?", spec.username, spec.email).First(&user).Error
		if err == nil {
			users = append(users, user)
			continue
		}

		user = models.User{
			Username: spec.username,
			Email:    spec.email,
			FullName: spec.fullName,
			Avatar:   fmt.Sprintf("https://api.dicebear.com/7.x/avataaars/png?seed=%s", spec.username),
		}
		if err := s.db.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to create test user %s: %w", spec.username, err)
		}
		users = append(users, user)
	}

	if len(users) == 0 {
		return fmt.Errorf("no test users available")
	}

	log("Creating test posts...")
	posts, err := s.seedPosts(users, 10)
	if err != nil {
		return fmt.Errorf("failed to seed posts: %w", err)
	}

	log("Creating test comments...")
	if _, err := s.seedComments(users, posts, 20); err != nil {
		return fmt.Errorf("failed to seed comments: %w", err)
	}

	return nil
}

// Clean removes all seed data (use with caution!)
func (s *Seeder) Clean() error {
	// Delete in reverse order of dependencies
	if err := s.db.Exec("DELETE FROM notifications").Error; err != nil {
		return fmt.Errorf("failed to clean notifications: %w", err)
	}
	if err := s.db.Exec("DELETE FROM likes").Error; err != nil {
		return fmt.Errorf("failed to clean likes: %w", err)
	}
	if err := s.db.Exec("DELETE FROM comments").Error; err != nil {
		return fmt.Errorf("failed to clean comments: %w", err)
	}
	if err := s.db.Exec("DELETE FROM follows").Error; err != nil {
		return fmt.Errorf("failed to clean follows: %w", err)
	}
	if err := s.db.Exec("DELETE FROM posts").Error; err != nil {
		return fmt.Errorf("failed to clean posts: %w", err)
	}
	if err := s.db.Exec("DELETE FROM users").Error; err != nil {
		return fmt.Errorf("failed to clean users: %w", err)
	}

	return nil
}

// seedUsers creates users with realistic data
func (s *Seeder) seedUsers(count int) ([]models.User, error) {
	var users []models.User

	var seedUserCount int64
	s.db.Model(&models.User{}).Where("email LIKE '%@example.com'").Count(&seedUserCount)
	if seedUserCount >= int64(count) {
		if err := s.db.Find(&users).Error; err != nil {
			return nil, err
		}
		logger.Log.Info("Found existing users, skipping creation",
			zap.Int("total_users", len(users)))
		return users, nil
	}

	for i := 0; i < count; i++ {
		username := gofakeit.Username()
		email := gofakeit.Email()

		// Ensure unique username/email
		var existingUser models.User
		for {
			if err := s.db.Where("username = ? OR email = ?", username, email).First(&existingUser).Error; err == gorm.ErrRecordNotFound {
				break
			}
			username = gofakeit.Username()
			email = gofakeit.Email()
		}

		user := models.User{
			Username: username,
			Email:    email,
			FullName: gofakeit.Name(),
			Bio:      gofakeit.HipsterSentence(),
			Avatar:   fmt.Sprintf("https://api.dicebear.com/7.x/avataaars/png?seed=%s", username),
		}

		if err := s.db.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		users = append(users, user)
	}

	logger.Log.Info("Created seed users", zap.Int("count", len(users)))
	return users, nil
}

// seedPosts creates posts with a power-law distribution: a few very
// active posters, most users moderate, the rest lurking.
func (s *Seeder) seedPosts(users []models.User, totalCount int) ([]models.Post, error) {
	var posts []models.Post

	if len(users) == 0 {
		return posts, nil
	}

	createPost := func(user models.User) error {
		post := models.Post{
			PosterID: user.ID,
			Title:    gofakeit.Sentence(5),
			Content:  gofakeit.Paragraph(1, 3, 12, " "),
		}

		createdAt := gofakeit.DateRange(time.Now().AddDate(0, 0, -30), time.Now())
		post.CreatedAt = createdAt
		post.UpdatedAt = createdAt

		if err := s.db.Create(&post).Error; err != nil {
			return fmt.Errorf("failed to create post: %w", err)
		}
		posts = append(posts, post)
		return nil
	}

	shuffledUsers := make([]models.User, len(users))
	copy(shuffledUsers, users)
	rand.Shuffle(len(shuffledUsers), func(i, j int) {
		shuffledUsers[i], shuffledUsers[j] = shuffledUsers[j], shuffledUsers[i]
	})

	powerUserCount := int(float64(len(users)) * 0.1)
	activeUserCount := int(float64(len(users)) * 0.3)

	userIndex := 0
	postsCreated := 0

	// Power users: 8-20 posts each
	for i := 0; i < powerUserCount && postsCreated < totalCount; i++ {
		user := shuffledUsers[userIndex]
		userIndex++
		postCount := 8 + rand.Intn(13)
		for j := 0; j < postCount && postsCreated < totalCount; j++ {
			if err := createPost(user); err != nil {
				return nil, err
			}
			postsCreated++
		}
	}

	// Active users: 3-8 posts each
	for i := 0; i < activeUserCount && postsCreated < totalCount; i++ {
		user := shuffledUsers[userIndex]
		userIndex++
		postCount := 3 + rand.Intn(6)
		for j := 0; j < postCount && postsCreated < totalCount; j++ {
			if err := createPost(user); err != nil {
				return nil, err
			}
			postsCreated++
		}
	}

	// Everyone else: 0-2 posts
	for userIndex < len(shuffledUsers) && postsCreated < totalCount {
		user := shuffledUsers[userIndex]
		userIndex++
		postCount := rand.Intn(3)
		for j := 0; j < postCount && postsCreated < totalCount; j++ {
			if err := createPost(user); err != nil {
				return nil, err
			}
			postsCreated++
		}
	}

	// Fill whatever remains randomly
	for postsCreated < totalCount {
		user := shuffledUsers[rand.Intn(len(shuffledUsers))]
		if err := createPost(user); err != nil {
			return nil, err
		}
		postsCreated++
	}

	logger.Log.Info("Created posts", zap.Int("count", len(posts)))
	return posts, nil
}

// seedFollows creates a follow graph and keeps the cached counts on the
// user rows consistent with it.
func (s *Seeder) seedFollows(users []models.User) error {
	if len(users) < 2 {
		return nil
	}

	created := 0
	for _, follower := range users {
		// Each user follows 2-8 others
		followCount := 2 + rand.Intn(7)
		for j := 0; j < followCount; j++ {
			followee := users[rand.Intn(len(users))]
			if followee.ID == follower.ID {
				continue
			}

			var existing models.Follow
			err := s.db.Where("follower_id = ? AND followee_id = ?", follower.ID, followee.ID).First(&existing).Error
			if err == nil {
				continue
			}
			if err != gorm.ErrRecordNotFound {
				return fmt.Errorf("failed to check follow: %w", err)
			}

			follow := models.Follow{FollowerID: follower.ID, FolloweeID: followee.ID}
			if err := s.db.Create(&follow).Error; err != nil {
				return fmt.Errorf("failed to create follow: %w", err)
			}
			created++
		}
	}

	// Recompute the cached counts from the follows table
	for _, user := range users {
		var followers, following int64
		s.db.Model(&models.Follow{}).Where("followee_id = ?", user.ID).Count(&followers)
		s.db.Model(&models.Follow{}).Where("follower_id = ?", user.ID).Count(&following)
		s.db.Model(&models.User{}).Where("id = ?", user.ID).
			Updates(map[string]interface{}{"follower_count": followers, "following_count": following})
	}

	logger.Log.Info("Created follows", zap.Int("count", created))
	return nil
}

// seedComments creates comments on posts
func (s *Seeder) seedComments(users []models.User, posts []models.Post, count int) ([]models.Comment, error) {
	var comments []models.Comment
	if len(users) == 0 || len(posts) == 0 {
		return comments, nil
	}

	commentTemplates := []string{
		"This is great!",
		"Love this take",
		"Couldn't agree more",
		"Great post!",
		"Following for more of this",
		"This hits different",
		"Saved for later",
		"Well said",
		"Interesting point",
		"Thanks for sharing",
	}

	for i := 0; i < count; i++ {
		user := users[rand.Intn(len(users))]
		post := posts[rand.Intn(len(posts))]

		var content string
		if rand.Float32() < 0.5 {
			content = commentTemplates[rand.Intn(len(commentTemplates))]
		} else {
			content = gofakeit.HipsterSentence()
		}

		comment := models.Comment{
			PostID:   post.ID,
			AuthorID: user.ID,
			Content:  content,
		}

		createdAt := gofakeit.DateRange(post.CreatedAt, time.Now())
		comment.CreatedAt = createdAt
		comment.UpdatedAt = createdAt

		if err := s.db.Create(&comment).Error; err != nil {
			return nil, fmt.Errorf("failed to create comment: %w", err)
		}
		comments = append(comments, comment)

		s.db.Model(&post).UpdateColumn("comment_count", gorm.Expr("comment_count + 1"))
	}

	logger.Log.Info("Created comments", zap.Int("count", len(comments)))
	return comments, nil
}

// seedLikes creates likes on posts, respecting the one-like-per-user
// unique index.
func (s *Seeder) seedLikes(users []models.User, posts []models.Post, count int) error {
	if len(users) == 0 || len(posts) == 0 {
		return nil
	}

	created := 0
	for i := 0; i < count; i++ {
		user := users[rand.Intn(len(users))]
		post := posts[rand.Intn(len(posts))]

		var existing models.Like
		err := s.db.Where("post_id = ? AND user_id = ?", post.ID, user.ID).First(&existing).Error
		if err == nil {
			continue
		}
		if err != gorm.ErrRecordNotFound {
			return fmt.Errorf("failed to check like: %w", err)
		}

		like := models.Like{PostID: post.ID, UserID: user.ID}
		if err := s.db.Create(&like).Error; err != nil {
			return fmt.Errorf("failed to create like: %w", err)
		}
		created++

		s.db.Model(&post).UpdateColumn("like_count", gorm.Expr("like_count + 1"))
	}

	logger.Log.Info("Created likes", zap.Int("count", created))
	return nil
}

// seedNotifications backfills notification rows that match the seeded
// likes, comments and follows, so inboxes and unread counts have
// something to show. Roughly a third are left unread.
func (s *Seeder) seedNotifications(users []models.User, posts []models.Post, comments []models.Comment) error {
	if len(users) == 0 {
		return nil
	}

	created := 0

	var likes []models.Like
	if err := s.db.Find(&likes).Error; err != nil {
		return fmt.Errorf("failed to fetch likes: %w", err)
	}
	postByID := make(map[string]models.Post, len(posts))
	for _, p := range posts {
		postByID[p.ID] = p
	}
	for _, like := range likes {
		post, ok := postByID[like.PostID]
		if !ok || post.PosterID == like.UserID {
			continue
		}
		n := models.Notification{
			RecipientID: post.PosterID,
			SenderID:    like.UserID,
			Kind:        models.NotificationLike,
			PostID:      &post.ID,
			Content:     post.Title,
			Read:        rand.Float32() < 0.66,
		}
		n.CreatedAt = gofakeit.DateRange(post.CreatedAt, time.Now())
		if err := s.db.Create(&n).Error; err != nil {
			return fmt.Errorf("failed to create like notification: %w", err)
		}
		created++
	}

	for i := range comments {
		comment := comments[i]
		post, ok := postByID[comment.PostID]
		if !ok || post.PosterID == comment.AuthorID {
			continue
		}
		n := models.Notification{
			RecipientID: post.PosterID,
			SenderID:    comment.AuthorID,
			Kind:        models.NotificationComment,
			PostID:      &post.ID,
			CommentID:   &comment.ID,
			Content:     comment.Content,
			Read:        rand.Float32() < 0.66,
		}
		n.CreatedAt = comment.CreatedAt
		if err := s.db.Create(&n).Error; err != nil {
			return fmt.Errorf("failed to create comment notification: %w", err)
		}
		created++
	}

	var follows []models.Follow
	if err := s.db.Find(&follows).Error; err != nil {
		return fmt.Errorf("failed to fetch follows: %w", err)
	}
	for _, follow := range follows {
		n := models.Notification{
			RecipientID: follow.FolloweeID,
			SenderID:    follow.FollowerID,
			Kind:        models.NotificationFollow,
			Read:        rand.Float32() < 0.66,
		}
		n.CreatedAt = gofakeit.DateRange(time.Now().AddDate(0, 0, -30), time.Now())
		if err := s.db.Create(&n).Error; err != nil {
			return fmt.Errorf("failed to create follow notification: %w", err)
		}
		created++
	}

	logger.Log.Info("Created notifications", zap.Int("count", created))
	return nil
}
