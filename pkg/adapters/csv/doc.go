// Package csv reads sensor tables into frames and writes run reports as CSV.
//
// Two input shapes are accepted. A wide table has one timestamp column and one
// column per measurement; column names are mapped onto channel IDs with the
// configured pattern. A tidy table has one reading per row:
//
//	timestamp,channel,value[,quality]
//
// Open inspects the header and picks the matching reader.
package csv
