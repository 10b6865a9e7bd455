package mapping

import (
	"fmt"
	"strings"
	"time"

	"github.com/collabhub/matching/internal/models"
)

const dateLayout = "2006-01-02"

// Blogger is a content creator profile.
type Blogger struct {
	ID             string    `json:"id"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	Bio            string    `json:"bio"`
	City           string    `json:"city"`
	Country        string    `json:"country"`
	Categories     []string  `json:"categories"`
	Languages      []string  `json:"languages"`
	FollowersTotal int64     `json:"followersTotal"`
	JoinedAt       time.Time `json:"joinedAt"`
}

func (b Blogger) SourceEntityID() string { return b.ID }

// BloggerDocument maps a blogger: the name is the title, the bio and location
// the content, categories and languages the tags.
func BloggerDocument(b Blogger) (*models.SearchDocument, error) {
	md := metadata{}.
		count("followers", b.FollowersTotal).
		str("city", b.City).
		str("country", b.Country)
	if !b.JoinedAt.IsZero() {
		md.str("joinedAt", b.JoinedAt.UTC().Format(dateLayout))
	}
	tags := append(append([]string{}, b.Categories...), b.Languages...)
	return build(models.ItemTypeBlogger, b.ID,
		join(" ", b.FirstName, b.LastName),
		join(". ", b.Bio, join(", ", b.City, b.Country)),
		tags, models.Metadata(md))
}

// InstagramAccount is a connected social account of a blogger.
type InstagramAccount struct {
	ID             string `json:"id"`
	BloggerID      string `json:"bloggerId"`
	Username       string `json:"username"`
	FullName       string `json:"fullName"`
	Biography      string `json:"biography"`
	Category       string `json:"category"`
	FollowersCount int64  `json:"followersCount"`
	FollowsCount   int64  `json:"followsCount"`
	MediaCount     int64  `json:"mediaCount"`
	IsVerified     bool   `json:"isVerified"`
}

func (a InstagramAccount) SourceEntityID() string { return a.ID }

// InstagramAccountDocument maps an account titled by its handle.
func InstagramAccountDocument(a InstagramAccount) (*models.SearchDocument, error) {
	title := a.Username
	if title != "" && !strings.HasPrefix(title, "@") {
		title = "@" + title
	}
	tags := []string{"instagram", a.Category}
	if a.IsVerified {
		tags = append(tags, "verified")
	}
	md := metadata{}.
		str("bloggerId", a.BloggerID).
		count("followers", a.FollowersCount).
		count("follows", a.FollowsCount).
		count("media", a.MediaCount).
		flag("verified", a.IsVerified)
	return build(models.ItemTypeInstagramAccount, a.ID, title,
		join(". ", a.FullName, a.Biography), tags, models.Metadata(md))
}

// Pact is a work agreement between a brand and a blogger.
type Pact struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	BloggerID   string    `json:"bloggerId"`
	BloggerName string    `json:"bloggerName"`
	BrandName   string    `json:"brandName"`
	Price       float64   `json:"price"`
	Currency    string    `json:"currency"`
	StartDate   time.Time `json:"startDate"`
	EndDate     time.Time `json:"endDate"`
}

func (p Pact) SourceEntityID() string { return p.ID }

// PactDocument maps an agreement; both parties are searchable.
func PactDocument(p Pact) (*models.SearchDocument, error) {
	title := p.Title
	if p.BrandName != "" && p.BloggerName != "" {
		title = join(": ", p.Title, fmt.Sprintf("%s x %s", p.BrandName, p.BloggerName))
	}
	md := metadata{}.
		str("bloggerId", p.BloggerID).
		str("status", p.Status).
		str("currency", p.Currency)
	if p.Price > 0 {
		md.num("price", p.Price)
	}
	if !p.StartDate.IsZero() {
		md.str("startDate", p.StartDate.UTC().Format(dateLayout))
	}
	if !p.EndDate.IsZero() {
		md.str("endDate", p.EndDate.UTC().Format(dateLayout))
	}
	return build(models.ItemTypePact, p.ID, title,
		join(". ", p.Description, p.BrandName, p.BloggerName),
		[]string{p.Status}, models.Metadata(md))
}

// Offer is a service a blogger sells, such as a story or a post.
type Offer struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	BloggerID    string   `json:"bloggerId"`
	BloggerName  string   `json:"bloggerName"`
	Platform     string   `json:"platform"`
	ContentTypes []string `json:"contentTypes"`
	Price        float64  `json:"price"`
	Currency     string   `json:"currency"`
	DeliveryDays int64    `json:"deliveryDays"`
}

func (o Offer) SourceEntityID() string { return o.ID }

// OfferDocument maps an offer titled "Name by Blogger".
func OfferDocument(o Offer) (*models.SearchDocument, error) {
	title := o.Name
	if o.BloggerName != "" {
		title = fmt.Sprintf("%s by %s", o.Name, o.BloggerName)
	}
	md := metadata{}.
		str("bloggerId", o.BloggerID).
		str("currency", o.Currency).
		str("platform", o.Platform)
	if o.Price > 0 {
		md.num("price", o.Price)
	}
	if o.DeliveryDays > 0 {
		md.count("deliveryDays", o.DeliveryDays)
	}
	tags := append([]string{o.Platform}, o.ContentTypes...)
	return build(models.ItemTypeOffer, o.ID, title, o.Description, tags, models.Metadata(md))
}

// Campaign is a brand's promotion looking for bloggers.
type Campaign struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Goals       string    `json:"goals"`
	BrandName   string    `json:"brandName"`
	Status      string    `json:"status"`
	Platforms   []string  `json:"platforms"`
	Categories  []string  `json:"categories"`
	Budget      float64   `json:"budget"`
	Currency    string    `json:"currency"`
	StartDate   time.Time `json:"startDate"`
	EndDate     time.Time `json:"endDate"`
}

func (c Campaign) SourceEntityID() string { return c.ID }

// CampaignDocument maps a campaign; platforms, categories and status become tags.
func CampaignDocument(c Campaign) (*models.SearchDocument, error) {
	md := metadata{}.
		str("brand", c.BrandName).
		str("status", c.Status).
		str("currency", c.Currency)
	if c.Budget > 0 {
		md.num("budget", c.Budget)
	}
	if !c.StartDate.IsZero() {
		md.str("startDate", c.StartDate.UTC().Format(dateLayout))
	}
	if !c.EndDate.IsZero() {
		md.str("endDate", c.EndDate.UTC().Format(dateLayout))
	}
	tags := append(append([]string{c.Status}, c.Platforms...), c.Categories...)
	return build(models.ItemTypeCampaign, c.ID, c.Name,
		join(". ", c.Description, c.Goals, c.BrandName), tags, models.Metadata(md))
}

// Review is feedback left on a completed pact.
type Review struct {
	ID         string    `json:"id"`
	PactID     string    `json:"pactId"`
	AuthorName string    `json:"authorName"`
	TargetName string    `json:"targetName"`
	Rating     int64     `json:"rating"`
	Comment    string    `json:"comment"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (r Review) SourceEntityID() string { return r.ID }

// ReviewDocument maps a review; the rating becomes an "N-star" tag.
func ReviewDocument(r Review) (*models.SearchDocument, error) {
	title := "Review"
	if r.TargetName != "" {
		title = "Review of " + r.TargetName
	}
	if r.AuthorName != "" {
		title += " by " + r.AuthorName
	}
	var tags []string
	md := metadata{}.str("pactId", r.PactID)
	if r.Rating > 0 {
		tags = append(tags, fmt.Sprintf("%d-star", r.Rating))
		md.count("rating", r.Rating)
	}
	if !r.CreatedAt.IsZero() {
		md.str("createdAt", r.CreatedAt.UTC().Format(dateLayout))
	}
	return build(models.ItemTypeReview, r.ID, title, r.Comment, tags, models.Metadata(md))
}
