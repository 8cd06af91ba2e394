package analytics

import (
	"context"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"github.com/cppla/aiblog/models"
)

// BlogRollup is the per-blog line of a user report.
type BlogRollup struct {
	BlogID      uint   `json:"blogId"`
	Title       string `json:"title"`
	Slug        string `json:"slug"`
	Views       int64  `json:"views"`
	UniqueViews int64  `json:"uniqueViews"`
	Comments    int64  `json:"comments"`
	Likes       int64  `json:"likes"`
}

// UserReport sums the analytics of every blog an author owns.
type UserReport struct {
	UserID           uint         `json:"userId"`
	TimeFilter       TimeFilter   `json:"timeFilter"`
	TotalBlogs       int64        `json:"totalBlogs"`
	TotalViews       int64        `json:"totalViews"`
	TotalUniqueViews int64        `json:"totalUniqueViews"`
	TotalComments    int64        `json:"totalComments"`
	TotalLikes       int64        `json:"totalLikes"`
	Blogs            []BlogRollup `json:"blogs"`
}

type blogViewTotals struct {
	BlogID uint
	Total  int64
	Uniq   int64
}

type blogCount struct {
	BlogID uint
	N      int64
}

// UserReport aggregates all blogs of userID with one grouped query per table.
func (r *Reporter) UserReport(ctx context.Context, userID uint, filter TimeFilter) (*UserReport, error) {
	filter = ParseTimeFilter(string(filter))
	window := filter.WindowAt(r.now())
	db := r.db.WithContext(ctx)

	report := &UserReport{UserID: userID, TimeFilter: filter, Blogs: []BlogRollup{}}

	var blogs []models.Blog
	if err := db.Select("id", "title", "slug").Where("user_id = ?", userID).Order("id").Find(&blogs).Error; err != nil {
		return nil, fmt.Errorf("list blogs: %w", err)
	}
	if len(blogs) == 0 {
		return report, nil
	}
	ownBlogs := db.Model(&models.Blog{}).Select("id").Where("user_id = ?", userID)

	var viewRows []blogViewTotals
	if err := inWindow(db.Model(&models.BlogView{}).Where("blog_id IN (?)", ownBlogs), window).
		Select("blog_id, COUNT(*) AS total, COUNT(DISTINCT CASE WHEN ip_address <> '' THEN ip_address END) AS uniq").
		Group("blog_id").
		Scan(&viewRows).Error; err != nil {
		return nil, fmt.Errorf("views per blog: %w", err)
	}
	comments, err := countPerBlog(inWindow(db.Model(&models.Comment{}).Where("blog_id IN (?)", ownBlogs), window))
	if err != nil {
		return nil, fmt.Errorf("comments per blog: %w", err)
	}
	likes, err := countPerBlog(inWindow(db.Model(&models.Like{}).Where("blog_id IN (?)", ownBlogs), window))
	if err != nil {
		return nil, fmt.Errorf("likes per blog: %w", err)
	}

	byBlog := make(map[uint]blogViewTotals, len(viewRows))
	for _, v := range viewRows {
		byBlog[v.BlogID] = v
	}
	for _, b := range blogs {
		line := BlogRollup{
			BlogID:      b.ID,
			Title:       b.Title,
			Slug:        b.Slug,
			Views:       byBlog[b.ID].Total,
			UniqueViews: byBlog[b.ID].Uniq,
			Comments:    comments[b.ID],
			Likes:       likes[b.ID],
		}
		report.Blogs = append(report.Blogs, line)
		report.TotalViews += line.Views
		report.TotalUniqueViews += line.UniqueViews
		report.TotalComments += line.Comments
		report.TotalLikes += line.Likes
	}
	report.TotalBlogs = int64(len(blogs))

	sort.SliceStable(report.Blogs, func(i, j int) bool {
		if report.Blogs[i].Views != report.Blogs[j].Views {
			return report.Blogs[i].Views > report.Blogs[j].Views
		}
		return report.Blogs[i].BlogID < report.Blogs[j].BlogID
	})
	return report, nil
}

func countPerBlog(q *gorm.DB) (map[uint]int64, error) {
	var rows []blogCount
	if err := q.Select("blog_id, COUNT(*) AS n").Group("blog_id").Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[uint]int64, len(rows))
	for _, row := range rows {
		out[row.BlogID] = row.N
	}
	return out, nil
}
