package sheet

// Exercise is the atomic content unit: a title and a body of text. The ID is
// assigned by the record store and never changes afterwards.
type Exercise struct {
	ID    int    `json:"id" bson:"_id"`
	Title string `json:"title" bson:"title"`
	Text  string `json:"text" bson:"text"`
}

// Sheet is a named, ordered list of exercise ids. Content entries are weak
// references: nothing guarantees that the referenced exercises exist.
type Sheet struct {
	ID      int    `json:"id" bson:"_id"`
	Title   string `json:"title" bson:"title"`
	Content []int  `json:"content" bson:"content"`
}

// SheetSummary is the list projection of a Sheet; it never carries content.
type SheetSummary struct {
	ID    int    `json:"id" bson:"_id"`
	Title string `json:"title" bson:"title"`
}

// ResolvedSheet is a Sheet whose content ids have been replaced, in order,
// by the exercises they reference. It is computed on every read.
type ResolvedSheet struct {
	ID        int        `json:"id"`
	Title     string     `json:"title"`
	Content   []int      `json:"content"`
	Exercises []Exercise `json:"exercises"`
}

// NewID is the path sentinel that asks a write endpoint to create a record.
const NewID = -1

// ExerciseInput is the writable part of an exercise.
type ExerciseInput struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// SheetInput is the writable part of a sheet.
type SheetInput struct {
	Title   string `json:"title"`
	Content []int  `json:"content"`
}

// Whitelisted request keys per write endpoint.
var (
	ExerciseKeys = []string{"title", "text"}
	SheetKeys    = []string{"title", "content"}
)
