// Package models defines the data model for the favorites sync pipeline.
//
// The package contains two categories of types:
//
// 1. State and wire types: plain structs shared by the pipeline, the store and the API client
//   - [TrackID] : opaque remote identifier, decoded from JSON numbers or strings
//   - [TrackRecord] : one favorited track and whether its file has been downloaded
//   - [UserTrackTable] : the set of track records for one user, keyed by id
//   - [StoreDocument] : every user's table; the whole persisted state
//   - [Favorite], [FavoritesPage], [StreamInfo] : SoundCloud API payloads
//
// 2. Persistent Entities: database-backed models with full lifecycle management
//   - [SyncSession] : one update or resume run, kept as history in SQLite
//
// Persistent entities implement the [Model] interface providing ID generation, timestamps and validation.
// The [Repository] interface defines standard CRUD operations for database access.
package models
