package model

// Post はブログ記事を表す。IDはタイトル由来のスラッグ。
type Post struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Content     string   `json:"content"`
	Category    string   `json:"category"`
	Featured    bool     `json:"featured"`
	Date        string   `json:"date"`
	ReadTime    string   `json:"readTime"`
	Author      string   `json:"author"`
	Tags        []string `json:"tags"`
	Views       int      `json:"views"`
	Likes       int      `json:"likes"`
}

// PostPatch は記事の部分更新を表す。nilのフィールドは変更しない。
type PostPatch struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Content     *string   `json:"content,omitempty"`
	Category    *string   `json:"category,omitempty"`
	Featured    *bool     `json:"featured,omitempty"`
	Date        *string   `json:"date,omitempty"`
	ReadTime    *string   `json:"readTime,omitempty"`
	Author      *string   `json:"author,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	Views       *int      `json:"views,omitempty"`
	Likes       *int      `json:"likes,omitempty"`
}

// Apply はパッチをpostに適用する。
func (p PostPatch) Apply(post *Post) {
	if p.Title != nil {
		post.Title = *p.Title
	}
	if p.Description != nil {
		post.Description = *p.Description
	}
	if p.Content != nil {
		post.Content = *p.Content
	}
	if p.Category != nil {
		post.Category = *p.Category
	}
	if p.Featured != nil {
		post.Featured = *p.Featured
	}
	if p.Date != nil {
		post.Date = *p.Date
	}
	if p.ReadTime != nil {
		post.ReadTime = *p.ReadTime
	}
	if p.Author != nil {
		post.Author = *p.Author
	}
	if p.Tags != nil {
		post.Tags = append([]string{}, (*p.Tags)...)
	}
	if p.Views != nil {
		post.Views = nonNegative(*p.Views)
	}
	if p.Likes != nil {
		post.Likes = nonNegative(*p.Likes)
	}
}
