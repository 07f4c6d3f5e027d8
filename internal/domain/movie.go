package domain

import "time"

// Movie represents a film or a TV series in the catalog. Review scores are
// aggregated directly onto the row.
type Movie struct {
	ID          string
	Name        string
	Description *string
	ImageURL    *string
	TrailerURL  *string
	TVSeries    bool
	ReleaseYear *int
	DirectorID  *string
	Reviews     Aggregate
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MovieDetail is a movie together with the entities hanging off it.
type MovieDetail struct {
	Movie
	Director *Person
	Genres   []Genre
	Cast     []CastMember
	Seasons  []Season
}

// Season groups the episodes of a TV series.
type Season struct {
	ID        string
	MovieID   string
	Number    int
	CreatedAt time.Time
	Episodes  []Episode
}

// Episode is the target of user ratings.
type Episode struct {
	ID         string
	SeasonID   string
	Number     int
	Title      *string
	Summary    *string
	PosterURL  *string
	TrailerURL *string
	Ratings    Aggregate
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Genre is a free-form movie classification.
type Genre struct {
	ID          string
	Name        string
	Description *string
}

// PersonRole distinguishes the two people tables.
type PersonRole string

const (
	RoleDirector PersonRole = "director"
	RoleActor    PersonRole = "actor"
)

// Person is a director or an actor.
type Person struct {
	ID           string
	Role         PersonRole
	Name         string
	Introduction *string
	ImageURL     *string
	CreatedAt    time.Time
}

// CastMember is an actor credited on a movie.
type CastMember struct {
	Person
	RoleName *string
}
