package rgbqmini

var Classify = classify
