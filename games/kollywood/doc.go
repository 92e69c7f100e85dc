// Package kollywood implements the Kollywood guessing game.
//
// The host reveals a first letter for each of four categories (Hero, Heroine,
// Song, Movie). Every player's board opens with those letters, and the other
// players race to fill each other's cells with answers starting with the
// right letter.
//
// Rules:
//   - A guess is correct when it starts with the revealed letter and is at
//     least two characters long
//   - A wrong guess crosses off one letter of the target's KOLLYWOOD strike track
//   - A player whose track runs out is eliminated for the round, and the host
//     scores a point
//   - Players may lock a cell while typing so others don't collide with them;
//     the lock is advisory and does not stop anyone from submitting
//   - The host advances rounds; after the last round the game ends and the
//     standings are sent to everyone
//   - If the host leaves, the longest-connected remaining player becomes host
//
// Each game runs inside its own Engine goroutine. A Registry maps game ids to
// engines and a Dispatcher routes inbound events to them.
package kollywood
