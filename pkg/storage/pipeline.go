package storage

import (
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// BuildPipeline returns the aggregation pipeline of q for a MongoDB server
func BuildPipeline(q Query) (mongo.Pipeline, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	switch q.Kind {
	case PipelineDailyCounts:
		return mongo.Pipeline{
			matchStage(q.Term, true),
			countBy(dateToString("%Y-%m-%d")),
			{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
			project("date"),
		}, nil

	case PipelineUniqueUsers:
		return mongo.Pipeline{
			matchStage(q.Term, false),
			{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$author_id"}}}},
			{{Key: "$group", Value: bson.D{
				{Key: "_id", Value: nil},
				{Key: "unique_users", Value: bson.D{{Key: "$sum", Value: 1}}},
			}}},
			{{Key: "$project", Value: bson.D{
				{Key: "_id", Value: 0},
				{Key: "unique_users", Value: "$unique_users"},
			}}},
		}, nil

	case PipelineAverageLikes:
		return mongo.Pipeline{
			matchStage(q.Term, false),
			{{Key: "$group", Value: bson.D{
				{Key: "_id", Value: nil},
				{Key: "avg_likes", Value: bson.D{{Key: "$avg", Value: "$like_count"}}},
			}}},
			{{Key: "$project", Value: bson.D{
				{Key: "_id", Value: 0},
				{Key: "avg_likes", Value: "$avg_likes"},
			}}},
		}, nil

	case PipelineTopPlaces:
		return mongo.Pipeline{
			matchStage(q.Term, false),
			countBy("$place_id"),
			byCountDesc(),
			{{Key: "$limit", Value: 10}},
			project("place_id"),
		}, nil

	case PipelineTimeOfDay:
		return mongo.Pipeline{
			matchStage(q.Term, true),
			countBy(dateToString(q.Granularity.format())),
			{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
			project("time_bucket"),
		}, nil

	case PipelineTopUser:
		return mongo.Pipeline{
			matchStage(q.Term, false),
			countBy("$author_handle"),
			byCountDesc(),
			{{Key: "$limit", Value: 1}},
			project("author_handle"),
		}, nil
	}

	return nil, ErrUnknownPipeline
}

// matchStage filters to records whose text contains term, ignoring case.
// The term is matched literally.
func matchStage(term string, needDate bool) bson.D {
	filter := bson.D{{Key: "text", Value: bson.D{
		{Key: "$regex", Value: regexp.QuoteMeta(term)},
		{Key: "$options", Value: "i"},
	}}}
	if needDate {
		filter = append(filter, bson.E{Key: "created_at", Value: bson.D{{Key: "$type", Value: "date"}}})
	}
	return bson.D{{Key: "$match", Value: filter}}
}

func dateToString(format string) bson.D {
	return bson.D{{Key: "$dateToString", Value: bson.D{
		{Key: "format", Value: format},
		{Key: "date", Value: "$created_at"},
	}}}
}

func countBy(key interface{}) bson.D {
	return bson.D{{Key: "$group", Value: bson.D{
		{Key: "_id", Value: key},
		{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
	}}}
}

func byCountDesc() bson.D {
	return bson.D{{Key: "$sort", Value: bson.D{
		{Key: "count", Value: -1},
		{Key: "_id", Value: 1},
	}}}
}

// project renames the group key to name and keeps count
func project(name string) bson.D {
	return bson.D{{Key: "$project", Value: bson.D{
		{Key: "_id", Value: 0},
		{Key: name, Value: "$_id"},
		{Key: "count", Value: "$count"},
	}}}
}
