package position

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/notnil/chess"
)

func pieceLetter(kind chess.PieceType, color chess.Color) byte {
	var b byte
	switch kind {
	case chess.King:
		b = 'k'
	case chess.Queen:
		b = 'q'
	case chess.Rook:
		b = 'r'
	case chess.Bishop:
		b = 'b'
	case chess.Knight:
		b = 'n'
	case chess.Pawn:
		b = 'p'
	}
	if color == chess.White {
		b -= 'a' - 'A'
	}
	return b
}

func parsePieceLetter(b byte) (chess.PieceType, chess.Color, bool) {
	color := chess.Black
	lower := b
	if b >= 'A' && b <= 'Z' {
		color = chess.White
		lower = b + ('a' - 'A')
	}
	var kind chess.PieceType
	switch lower {
	case 'k':
		kind = chess.King
	case 'q':
		kind = chess.Queen
	case 'r':
		kind = chess.Rook
	case 'b':
		kind = chess.Bishop
	case 'n':
		kind = chess.Knight
	case 'p':
		kind = chess.Pawn
	default:
		return chess.NoPieceType, chess.NoColor, false
	}
	return kind, color, true
}

func encodeBoardFEN(g *grid) string {
	var ranks []string
	for rank := 7; rank >= 0; rank-- {
		var sb strings.Builder
		empty := 0
		for file := 0; file < 8; file++ {
			o := g[file][rank]
			if !o.present {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteString(strconv.Itoa(empty))
				empty = 0
			}
			sb.WriteByte(pieceLetter(o.kind, o.color))
		}
		if empty > 0 {
			sb.WriteString(strconv.Itoa(empty))
		}
		ranks = append(ranks, sb.String())
	}
	return strings.Join(ranks, "/")
}

func decodeBoardFEN(s string) (*grid, error) {
	var g grid
	ranks := strings.Split(s, "/")
	if len(ranks) != 8 {
		return nil, fmt.Errorf("position: malformed board fen %q", s)
	}
	for i, rankStr := range ranks {
		rank := 7 - i
		file := 0
		for _, c := range rankStr {
			if c >= '1' && c <= '8' {
				file += int(c - '0')
				continue
			}
			kind, color, ok := parsePieceLetter(byte(c))
			if !ok {
				return nil, fmt.Errorf("position: unknown piece letter %q in fen %q", c, s)
			}
			if file >= 8 {
				return nil, fmt.Errorf("position: rank overflow in fen %q", s)
			}
			g[file][rank] = occupant{present: true, color: color, kind: kind}
			file++
		}
		if file != 8 {
			return nil, fmt.Errorf("position: rank %d has %d files, want 8 in fen %q", i, file, s)
		}
	}
	return &g, nil
}

type castleRights struct {
	whiteKing, whiteQueen, blackKing, blackQueen bool
}

func (c castleRights) String() string {
	var sb strings.Builder
	if c.whiteKing {
		sb.WriteByte('K')
	}
	if c.whiteQueen {
		sb.WriteByte('Q')
	}
	if c.blackKing {
		sb.WriteByte('k')
	}
	if c.blackQueen {
		sb.WriteByte('q')
	}
	if sb.Len() == 0 {
		return "-"
	}
	return sb.String()
}

func parseCastleRights(s string) castleRights {
	return castleRights{
		whiteKing:  strings.ContainsRune(s, 'K'),
		whiteQueen: strings.ContainsRune(s, 'Q'),
		blackKing:  strings.ContainsRune(s, 'k'),
		blackQueen: strings.ContainsRune(s, 'q'),
	}
}

// standardFEN renders the position as a plain (holdings-free) FEN that
// notnil/chess can parse directly.
func (bp *BughousePosition) standardFEN() string {
	turn := "w"
	if bp.turn == chess.Black {
		turn = "b"
	}
	ep := "-"
	if bp.epSquare != nil {
		ep = bp.epSquare.String()
	}
	return fmt.Sprintf("%s %s %s %s %d %d",
		encodeBoardFEN(&bp.grid), turn, bp.castle.String(), ep, bp.halfmove, bp.fullmove)
}

// holdingsBracket renders "[QRBNPqrbnp]"-ordered holding letters per
// spec.md §6: white held pieces uppercase then black held lowercase,
// both in the fixed order Q,R,B,N,P.
func (bp *BughousePosition) holdingsBracket() string {
	order := []DroppablePiece{Queen, Rook, Bishop, Knight, Pawn}
	var sb strings.Builder
	for _, p := range order {
		for i := 0; i < bp.holdings.White.Count(p); i++ {
			sb.WriteByte(p.Letter())
		}
	}
	for _, p := range order {
		for i := 0; i < bp.holdings.Black.Count(p); i++ {
			sb.WriteByte(toLower(p.Letter()))
		}
	}
	return sb.String()
}

func toLower(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}

// FENWithHoldings is the canonical bughouse-FEN encoding sent to the
// engine, per spec.md §4.3/§6: the bracketed holdings segment is
// spliced in between the board field and the side-to-move field.
func (bp *BughousePosition) FENWithHoldings() string {
	full := bp.standardFEN()
	fields := strings.SplitN(full, " ", 2)
	return fmt.Sprintf("%s[%s] %s", fields[0], bp.holdingsBracket(), fields[1])
}

// ParseBughouseFEN splits off and decodes the "[H]" holdings bracket
// (if present) and returns the remaining standard FEN plus the decoded
// Holdings.
func ParseBughouseFEN(fenWithHoldings string) (standardFEN string, h Holdings, err error) {
	open := strings.IndexByte(fenWithHoldings, '[')
	close := strings.IndexByte(fenWithHoldings, ']')
	if open < 0 || close < 0 || close < open {
		return fenWithHoldings, h, nil
	}
	bracket := fenWithHoldings[open+1 : close]
	for i := 0; i < len(bracket); i++ {
		kind, color, ok := parsePieceLetter(bracket[i])
		if !ok {
			return "", h, fmt.Errorf("position: unknown holdings letter %q", bracket[i])
		}
		dp, ok := DroppablePieceFromChessType(kind)
		if !ok {
			return "", h, fmt.Errorf("position: king cannot be held (fen %q)", fenWithHoldings)
		}
		h.Add(color, dp)
	}
	standardFEN = fenWithHoldings[:open] + fenWithHoldings[close+1:]
	standardFEN = strings.Join(strings.Fields(standardFEN), " ")
	return standardFEN, h, nil
}
