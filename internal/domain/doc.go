// Package domain models current weather observations returned by the
// OpenWeather "current weather data" endpoint.
//
// # Data Source
//
// One GET per city against /data/2.5/weather with query parameters
// q (city name, passed verbatim), appid, units and lang. The response is a
// nested JSON object; the fields read here are:
//
//	name                    city name as resolved by the API (casing and accents may differ from q)
//	main.temp               temperature
//	main.feels_like         apparent temperature
//	main.temp_min/temp_max  observed min/max across the city area
//	main.humidity           relative humidity, percent
//	main.pressure           sea-level pressure, hPa
//	weather[0].description  condition text in the requested language
//	wind.speed              m/s (metric) or mph (imperial)
//	clouds.all              cloudiness, percent
//	dt                      observation time, Unix seconds UTC
//
// # Units
//
// Temperature values are in °C for units=metric and °F for units=imperial.
// The unit system is fixed for a run; derived classifications use the same
// system the data was requested in.
//
// # Cleaning
//
// [Clean] turns records into [Observation] values: records without a city,
// description or finite temperature are dropped, exact duplicates are
// removed, and the weekday and [TemperatureCategory] are derived. Records
// themselves are never modified.
package domain
