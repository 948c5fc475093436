package cache

import "fmt"

// Key builders, kept in one place so invalidation uses the same names as
// population.

func UserKey(userID string) string {
	return "user:" + userID
}

func SessionKey(userID string) string {
	return "session:" + userID
}

func ItineraryKey(itineraryID string) string {
	return "itinerary:" + itineraryID
}

func UserItinerariesKey(userID string) string {
	return "itineraries:user:" + userID
}

func SafetyScoreKey(geohash string) string {
	return "safety:" + geohash
}

func PasswordResetKey(token string) string {
	return "password_reset:" + token
}

func RateLimitKey(ip, scope string) string {
	return fmt.Sprintf("ratelimit:%s:%s", scope, ip)
}
